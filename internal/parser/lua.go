package parser

import (
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/lintstorm/internal/diag"
)

// LuaParser runs a user-supplied Lua script to decode tool output. The
// script must define a global function:
//
//	function parse(lines)
//	  return {
//	    { file = "a.go", line = 3, column = 1, severity = "error",
//	      code = "X001", message = "something is wrong" },
//	  }
//	end
//
// Script or runtime errors degrade to an empty result; a broken parser must
// never take the scheduling engine down with it.
type LuaParser struct {
	source string
	script string
}

// NewLuaParser creates a LuaParser from script source code.
func NewLuaParser(source, script string) *LuaParser {
	return &LuaParser{source: source, script: script}
}

// Parse implements Parser. Each call runs in a fresh Lua state so script
// state cannot leak between analysis runs.
func (p *LuaParser) Parse(lines []string) []diag.Diagnostic {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(p.script); err != nil {
		slog.Warn("lua parser script failed to load", "error", err)
		return nil
	}

	fn := L.GetGlobal("parse")
	if fn.Type() != lua.LTFunction {
		slog.Warn("lua parser script defines no parse function")
		return nil
	}

	arg := L.NewTable()
	for _, line := range lines {
		arg.Append(lua.LString(line))
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
		slog.Warn("lua parse call failed", "error", err)
		return nil
	}

	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil
	}

	var out []diag.Diagnostic
	tbl.ForEach(func(_, v lua.LValue) {
		item, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		d := diag.Diagnostic{
			File:      luaString(item, "file"),
			Line:      luaInt(item, "line"),
			Column:    luaInt(item, "column"),
			EndLine:   luaInt(item, "endLine"),
			EndColumn: luaInt(item, "endColumn"),
			Code:      luaString(item, "code"),
			Message:   luaString(item, "message"),
			Source:    p.source,
		}
		if sev := luaString(item, "severity"); sev != "" {
			d.Severity = diag.ParseSeverity(sev)
		} else {
			d.Severity = diag.SeverityError
		}
		if d.Message != "" {
			out = append(out, d)
		}
	})
	return out
}

func luaString(t *lua.LTable, key string) string {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return ""
	}
	return lua.LVAsString(v)
}

func luaInt(t *lua.LTable, key string) int {
	v := t.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return int(n)
	}
	return 0
}
