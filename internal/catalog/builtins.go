package catalog

import "sync"

// Helpers for declaring builtin entries compactly.

func val(name string, arg int) InputSlot  { return InputSlot{Name: name, Arg: arg} }
func cond(name string, arg int) InputSlot { return InputSlot{Name: name, Arg: arg, Shape: ShapeCondition} }

func menu(name string, arg int, opcode, field string, aliases map[string]string) InputSlot {
	return InputSlot{Name: name, Arg: arg, Shape: ShapeMenu, Menu: &Menu{Opcode: opcode, Field: field, Aliases: aliases}}
}

func broadcastIn(name string, arg int) InputSlot {
	return InputSlot{Name: name, Arg: arg, Shape: ShapeBroadcast, Menu: &Menu{Opcode: "event_broadcast_menu", Field: "BROADCAST_OPTION"}}
}

func argField(name string, arg int) FieldSlot { return FieldSlot{Name: name, Arg: arg, Source: FieldArg} }
func constField(name, value string) FieldSlot {
	return FieldSlot{Name: name, Arg: -1, Source: FieldConstant, Value: value}
}
func varField(arg int) FieldSlot  { return FieldSlot{Name: "VARIABLE", Arg: arg, Source: FieldVariable} }
func listField(arg int) FieldSlot { return FieldSlot{Name: "LIST", Arg: arg, Source: FieldList} }

func entry(kind Kind, name, opcode string, arity int, parts ...any) *Block {
	b := &Block{Name: name, Opcode: opcode, Kind: kind, Arity: arity}
	for _, p := range parts {
		switch p := p.(type) {
		case InputSlot:
			b.Inputs = append(b.Inputs, p)
		case FieldSlot:
			b.Fields = append(b.Fields, p)
		}
	}
	return b
}

func cmd(name, opcode string, arity int, parts ...any) *Block {
	return entry(Command, name, opcode, arity, parts...)
}

func rep(name, opcode string, arity int, parts ...any) *Block {
	return entry(Reporter, name, opcode, arity, parts...)
}

func boolean(name, opcode string, arity int, parts ...any) *Block {
	return entry(Boolean, name, opcode, arity, parts...)
}

func hat(name, opcode string, arity int, parts ...any) *Block {
	return entry(Hat, name, opcode, arity, parts...)
}

func cshape(name, opcode string, arity int, parts ...any) *Block {
	return entry(CShape, name, opcode, arity, parts...)
}

var (
	spriteTargets = map[string]string{"mouse-pointer": "_mouse_", "random-position": "_random_"}
	pointTargets  = map[string]string{"mouse-pointer": "_mouse_"}
	touchTargets  = map[string]string{"mouse-pointer": "_mouse_", "edge": "_edge_"}
	cloneTargets  = map[string]string{"myself": "_myself_"}
	ofTargets     = map[string]string{"Stage": "_stage_"}
)

func builtinEntries() []*Block {
	entries := []*Block{
		// Event hats, selected by handler attributes.
		hat("on_flag_clicked", "event_whenflagclicked", 0),
		hat("on_key_pressed", "event_whenkeypressed", 1, argField("KEY_OPTION", 0)),
		hat("on_clone_start", "control_start_as_clone", 0),
		hat("on_broadcast_received", "event_whenbroadcastreceived", 1,
			FieldSlot{Name: "BROADCAST_OPTION", Arg: 0, Source: FieldBroadcast}),
		hat("on_sprite_clicked", "event_whenthisspriteclicked", 0),
		hat("on_stage_clicked", "event_whenstageclicked", 0),
		hat("on_backdrop_switches", "event_whenbackdropswitchesto", 1, argField("BACKDROP", 0)),
		hat("on_greater_than", "event_whengreaterthan", 2,
			FieldSlot{Name: "WHENGREATERTHANMENU", Arg: 0, Source: FieldArg, Upper: true}, val("VALUE", 1)),

		// Motion.
		cmd("move_steps", "motion_movesteps", 1, val("STEPS", 0)),
		cmd("turn_right", "motion_turnright", 1, val("DEGREES", 0)),
		cmd("turn_left", "motion_turnleft", 1, val("DEGREES", 0)),
		cmd("go_to", "motion_goto", 1, menu("TO", 0, "motion_goto_menu", "TO", spriteTargets)),
		cmd("go_to", "motion_gotoxy", 2, val("X", 0), val("Y", 1)),
		cmd("glide", "motion_glidesecstoxy", 3, val("SECS", 0), val("X", 1), val("Y", 2)),
		cmd("glide_to", "motion_glideto", 2, val("SECS", 0), menu("TO", 1, "motion_glideto_menu", "TO", spriteTargets)),
		cmd("point_in_direction", "motion_pointindirection", 1, val("DIRECTION", 0)),
		cmd("point_towards", "motion_pointtowards", 1,
			menu("TOWARDS", 0, "motion_pointtowards_menu", "TOWARDS", pointTargets)),
		cmd("change_x_by", "motion_changexby", 1, val("DX", 0)),
		cmd("set_x_to", "motion_setx", 1, val("X", 0)),
		cmd("change_y_by", "motion_changeyby", 1, val("DY", 0)),
		cmd("set_y_to", "motion_sety", 1, val("Y", 0)),
		cmd("if_on_edge_bounce", "motion_ifonedgebounce", 0),
		cmd("set_rotation_style", "motion_setrotationstyle", 1, argField("STYLE", 0)),
		rep("x_position", "motion_xposition", 0),
		rep("y_position", "motion_yposition", 0),
		rep("direction", "motion_direction", 0),

		// Looks.
		cmd("say", "looks_say", 1, val("MESSAGE", 0)),
		cmd("say_for", "looks_sayforsecs", 2, val("MESSAGE", 0), val("SECS", 1)),
		cmd("think", "looks_think", 1, val("MESSAGE", 0)),
		cmd("think_for", "looks_thinkforsecs", 2, val("MESSAGE", 0), val("SECS", 1)),
		cmd("switch_costume_to", "looks_switchcostumeto", 1, menu("COSTUME", 0, "looks_costume", "COSTUME", nil)),
		cmd("next_costume", "looks_nextcostume", 0),
		cmd("switch_backdrop_to", "looks_switchbackdropto", 1, menu("BACKDROP", 0, "looks_backdrops", "BACKDROP", nil)),
		cmd("next_backdrop", "looks_nextbackdrop", 0),
		cmd("change_size_by", "looks_changesizeby", 1, val("CHANGE", 0)),
		cmd("set_size_to", "looks_setsizeto", 1, val("SIZE", 0)),
		cmd("change_effect_by", "looks_changeeffectby", 2, FieldSlot{Name: "EFFECT", Arg: 0, Upper: true}, val("CHANGE", 1)),
		cmd("set_effect_to", "looks_seteffectto", 2, FieldSlot{Name: "EFFECT", Arg: 0, Upper: true}, val("VALUE", 1)),
		cmd("clear_graphic_effects", "looks_cleargraphiceffects", 0),
		cmd("show", "looks_show", 0),
		cmd("hide", "looks_hide", 0),
		cmd("go_to_front_layer", "looks_gotofrontback", 0, constField("FRONT_BACK", "front")),
		cmd("go_back_layer", "looks_gotofrontback", 0, constField("FRONT_BACK", "back")),
		cmd("go_forward_layers", "looks_goforwardbackwardlayers", 1, constField("FORWARD_BACKWARD", "forward"), val("NUM", 0)),
		cmd("go_backward_layers", "looks_goforwardbackwardlayers", 1, constField("FORWARD_BACKWARD", "backward"), val("NUM", 0)),
		rep("size", "looks_size", 0),
		rep("costume_number", "looks_costumenumbername", 0, constField("NUMBER_NAME", "number")),
		rep("costume_name", "looks_costumenumbername", 0, constField("NUMBER_NAME", "name")),
		rep("backdrop_number", "looks_backdropnumbername", 0, constField("NUMBER_NAME", "number")),
		rep("backdrop_name", "looks_backdropnumbername", 0, constField("NUMBER_NAME", "name")),

		// Sound.
		cmd("start_sound", "sound_play", 1, menu("SOUND_MENU", 0, "sound_sounds_menu", "SOUND_MENU", nil)),
		cmd("play_sound_until_done", "sound_playuntildone", 1, menu("SOUND_MENU", 0, "sound_sounds_menu", "SOUND_MENU", nil)),
		cmd("stop_all_sounds", "sound_stopallsounds", 0),
		cmd("change_volume_by", "sound_changevolumeby", 1, val("VOLUME", 0)),
		cmd("set_volume_to", "sound_setvolumeto", 1, val("VOLUME", 0)),
		cmd("change_sound_effect_by", "sound_changeeffectby", 2, FieldSlot{Name: "EFFECT", Arg: 0, Upper: true}, val("VALUE", 1)),
		cmd("set_sound_effect_to", "sound_seteffectto", 2, FieldSlot{Name: "EFFECT", Arg: 0, Upper: true}, val("VALUE", 1)),
		cmd("clear_sound_effects", "sound_cleareffects", 0),
		rep("volume", "sound_volume", 0),

		// Events.
		cmd("broadcast", "event_broadcast", 1, broadcastIn("BROADCAST_INPUT", 0)),
		cmd("broadcast_and_wait", "event_broadcastandwait", 1, broadcastIn("BROADCAST_INPUT", 0)),

		// Control.
		cmd("wait", "control_wait", 1, val("DURATION", 0)),
		cmd("wait_until", "control_wait_until", 1, cond("CONDITION", 0)),
		cmd("stop", "control_stop", 1, argField("STOP_OPTION", 0)),
		cmd("create_clone_of", "control_create_clone_of", 1,
			menu("CLONE_OPTION", 0, "control_create_clone_of_menu", "CLONE_OPTION", cloneTargets)),
		cmd("delete_this_clone", "control_delete_this_clone", 0),
		cshape("while", "control_while", 1, cond("CONDITION", 0)),
		cshape("for_each", "control_for_each", 2, varField(0), val("VALUE", 1)),
		cshape("all_at_once", "control_all_at_once", 0),

		// Sensing.
		boolean("touching", "sensing_touchingobject", 1,
			menu("TOUCHINGOBJECTMENU", 0, "sensing_touchingobjectmenu", "TOUCHINGOBJECTMENU", touchTargets)),
		boolean("touching_color", "sensing_touchingcolor", 1, val("COLOR", 0)),
		boolean("color_touching_color", "sensing_coloristouchingcolor", 2, val("COLOR", 0), val("COLOR2", 1)),
		rep("distance_to", "sensing_distanceto", 1,
			menu("DISTANCETOMENU", 0, "sensing_distancetomenu", "DISTANCETOMENU", pointTargets)),
		cmd("ask_and_wait", "sensing_askandwait", 1, val("QUESTION", 0)),
		rep("answer", "sensing_answer", 0),
		boolean("key_pressed", "sensing_keypressed", 1, menu("KEY_OPTION", 0, "sensing_keyoptions", "KEY_OPTION", nil)),
		boolean("mouse_down", "sensing_mousedown", 0),
		rep("mouse_x", "sensing_mousex", 0),
		rep("mouse_y", "sensing_mousey", 0),
		cmd("set_drag_mode", "sensing_setdragmode", 1, argField("DRAG_MODE", 0)),
		rep("loudness", "sensing_loudness", 0),
		rep("timer", "sensing_timer", 0),
		cmd("reset_timer", "sensing_resettimer", 0),
		rep("of", "sensing_of", 2, argField("PROPERTY", 0),
			menu("OBJECT", 1, "sensing_of_object_menu", "OBJECT", ofTargets)),
		rep("current_year", "sensing_current", 0, constField("CURRENTMENU", "YEAR")),
		rep("current_month", "sensing_current", 0, constField("CURRENTMENU", "MONTH")),
		rep("current_date", "sensing_current", 0, constField("CURRENTMENU", "DATE")),
		rep("current_day_of_week", "sensing_current", 0, constField("CURRENTMENU", "DAYOFWEEK")),
		rep("current_hour", "sensing_current", 0, constField("CURRENTMENU", "HOUR")),
		rep("current_minute", "sensing_current", 0, constField("CURRENTMENU", "MINUTE")),
		rep("current_second", "sensing_current", 0, constField("CURRENTMENU", "SECOND")),
		rep("days_since_2000", "sensing_dayssince2000", 0),
		rep("username", "sensing_username", 0),

		// Operators.
		rep("random", "operator_random", 2, val("FROM", 0), val("TO", 1)),
		{Name: "join", Opcode: "operator_join", Kind: Reporter, Arity: -1, Variadic: true},
		rep("letter_of", "operator_letter_of", 2, val("STRING", 0), val("LETTER", 1)),
		rep("length_of", "operator_length", 1, val("STRING", 0)),
		boolean("contains", "operator_contains", 2, val("STRING1", 0), val("STRING2", 1)),
		rep("mod", "operator_mod", 2, val("NUM1", 0), val("NUM2", 1)),
		rep("round", "operator_round", 1, val("NUM", 0)),
		rep("ceil", "operator_mathop", 1, constField("OPERATOR", "ceiling"), val("NUM", 0)),

		// Data.
		cmd("set_variable", "data_setvariableto", 2, varField(0), val("VALUE", 1)),
		cmd("change_variable_by", "data_changevariableby", 2, varField(0), val("VALUE", 1)),
		cmd("show_variable", "data_showvariable", 1, varField(0)),
		cmd("hide_variable", "data_hidevariable", 1, varField(0)),
		cmd("add_to_list", "data_addtolist", 2, listField(0), val("ITEM", 1)),
		cmd("delete_of_list", "data_deleteoflist", 2, listField(0), val("INDEX", 1)),
		cmd("delete_all_of_list", "data_deletealloflist", 1, listField(0)),
		cmd("insert_at_list", "data_insertatlist", 3, listField(0), val("INDEX", 1), val("ITEM", 2)),
		cmd("replace_item_of_list", "data_replaceitemoflist", 3, listField(0), val("INDEX", 1), val("ITEM", 2)),
		rep("item_of_list", "data_itemoflist", 2, listField(0), val("INDEX", 1)),
		rep("item_num_of_list", "data_itemnumoflist", 2, listField(0), val("ITEM", 1)),
		rep("length_of_list", "data_lengthoflist", 1, listField(0)),
		boolean("list_contains", "data_listcontainsitem", 2, listField(0), val("ITEM", 1)),
		cmd("show_list", "data_showlist", 1, listField(0)),
		cmd("hide_list", "data_hidelist", 1, listField(0)),
	}

	for _, op := range []string{"abs", "floor", "sqrt", "sin", "cos", "tan", "asin", "acos", "atan", "ln", "log", "e^", "10^"} {
		entries = append(entries, rep(op, "operator_mathop", 1, constField("OPERATOR", op), val("NUM", 0)))
	}
	return entries
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the shared builtin catalog. Callers that register
// extensions must Clone it first.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c := New()
		for _, b := range builtinEntries() {
			if err := c.Add(b); err != nil {
				panic(err)
			}
		}
		defaultCat = c
	})
	return defaultCat
}
