package virtualize

import "github.com/roach88/blockc/internal/ast"

// Names of the injected state and generated routines.
const (
	MemoryList   = "__mem"
	FreeList     = "__free"
	HighWater    = "__hwm"
	ReturnReg    = "__ret"
	AllocRoutine = "__alloc"
	FrameParam   = "_frame"
	InnerPrefix  = "_inner_"
	ScriptPrefix = "_inner_script_"

	DefaultFrameWidth = 16
)

// stateDecls declares the shared memory. The declarations are public so a
// sprite's copy is hoisted onto the stage and every target shares one heap.
func stateDecls() []ast.Item {
	return []ast.Item{
		&ast.VariableDecl{Name: MemoryList, Type: ast.TypeList, Public: true, Init: &ast.ListLit{}},
		&ast.VariableDecl{Name: FreeList, Type: ast.TypeList, Public: true, Init: &ast.ListLit{}},
		&ast.VariableDecl{Name: HighWater, Type: ast.TypeNumber, Public: true, Init: ast.Num(1)},
		&ast.VariableDecl{Name: ReturnReg, Type: ast.TypeNumber, Public: true, Init: ast.Num(0)},
	}
}

func stmt(name string, args ...ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: ast.CallOf(name, args...)}
}

func add(a, b ast.Expr) ast.Expr {
	return &ast.Binary{Op: ast.OpAdd, Left: a, Right: b}
}

// slot returns the memory index of offset off in the frame based at base.
func slot(base ast.Expr, off int) ast.Expr {
	if off == 0 {
		return base
	}
	return add(base, ast.Num(float64(off)))
}

func load(index ast.Expr) ast.Expr {
	return ast.CallOf("item_of_list", ast.Var(MemoryList), index)
}

func store(index, value ast.Expr) *ast.ExprStmt {
	return stmt("replace_item_of_list", ast.Var(MemoryList), index, value)
}

// free returns a frame to the free list.
func free(base ast.Expr) *ast.ExprStmt {
	return stmt("add_to_list", ast.Var(FreeList), base)
}

func setReturn(v ast.Expr) *ast.Assign {
	return &ast.Assign{Name: ReturnReg, Value: v}
}

// allocRoutine leaves the base of a fresh frame in the return register. It
// runs without screen refresh so no other script can allocate between
// reading the high-water mark and growing the memory list.
func allocRoutine(width int) *ast.ProcedureDef {
	return &ast.ProcedureDef{Name: AllocRoutine, Body: alloc(width), Warp: true}
}

// alloc is the body of the allocation routine. A frame popped from the
// free list is reused before the high-water mark grows.
func alloc(width int) []ast.Stmt {
	top := ast.CallOf("length_of_list", ast.Var(FreeList))
	return []ast.Stmt{
		&ast.If{
			Cond: &ast.Binary{Op: ast.OpGt, Left: top, Right: ast.Num(0)},
			Then: []ast.Stmt{
				setReturn(ast.CallOf("item_of_list", ast.Var(FreeList), ast.CloneExpr(top))),
				stmt("delete_of_list", ast.Var(FreeList), ast.CloneExpr(top)),
			},
			Else: []ast.Stmt{
				setReturn(ast.Var(HighWater)),
				&ast.Assign{Name: HighWater, Value: add(ast.Var(HighWater), ast.Num(float64(width)))},
				&ast.Repeat{
					Times: ast.Num(float64(width)),
					Body:  []ast.Stmt{stmt("add_to_list", ast.Var(MemoryList), ast.Num(0))},
				},
			},
		},
	}
}

// innerName returns the name of the routine holding the body of name.
// Imported routines keep their module qualifier.
func innerName(p *ast.ProcedureDef) string {
	mod, base := ast.SplitQualified(p.Name)
	if p.Module != "" {
		mod = p.Module
	}
	return ast.Qualify(mod, InnerPrefix+base)
}
