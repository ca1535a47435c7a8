package lua

import (
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/samaelod/paesim/types"
)

// ReadLuaConfig runs a scenario script and maps the table it returns.
func ReadLuaConfig(path string) (*types.Config, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return nil, err
	}
	return mapConfig(L)
}

// ReadLuaString is ReadLuaConfig for an in-memory script.
func ReadLuaString(src string) (*types.Config, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return nil, err
	}
	return mapConfig(L)
}

func mapConfig(L *lua.LState) (*types.Config, error) {
	// the script returns the config table
	lv := L.Get(-1)
	table, ok := lv.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua file did not return a table")
	}

	var cfg types.Config
	if err := gluamapper.Map(table, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
