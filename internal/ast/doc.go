// Package ast defines the syntax tree consumed by the blockc pipeline.
//
// The tree is produced by an external parser (or decoded from an AST
// document by package source) and flows through three rewriting stages:
//
//	resolve     prunes unreachable routines and qualifies imported names
//	virtualize  lowers locals and returns onto a shared memory list
//	codegen     lowers the result into a block graph
//
// Item, Stmt and Expr are closed sum types: every implementation lives in
// this package and carries an unexported marker method, so type switches
// over them are exhaustive by construction.
//
// ast imports nothing internal.
package ast
