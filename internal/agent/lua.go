package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Shopify/go-lua"

	"github.com/intentflow/engine/pkg/api"
)

type (
	// LuaAgent executes a rule script to turn step prompts into tool
	// invocations. The script receives the prompt and the allowed tool
	// names and must return a table of the form
	// {tool = "...", args = {...}}
	LuaAgent struct {
		bytecode  []byte
		statePool chan *lua.State
	}
)

const (
	luaStatePoolSize   = 10
	luaGlobalTable     = "_G"
	luaGlobalIndex     = -2
	luaTableIndex      = -3
	luaRequestPrologue = "local prompt, tools = select(1, ...), select(2, ...)"
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

var (
	ErrLuaScriptEmpty = errors.New("agent script empty")
	ErrLuaLoad        = errors.New("lua load error")
	ErrLuaExecution   = errors.New("lua execution error")
	ErrLuaBadReply    = errors.New("script must return a table")
)

var _ Agent = (*LuaAgent)(nil)

// NewLuaAgent compiles the rule script once and returns an agent that runs
// it per step with a pooled interpreter state
func NewLuaAgent(script string) (*LuaAgent, error) {
	if script == "" {
		return nil, ErrLuaScriptEmpty
	}

	src := luaRequestPrologue + "\n" + script

	L := lua.NewState()
	setupSandbox(L)
	if err := lua.LoadString(L, src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, err
	}

	return &LuaAgent{
		bytecode:  buf.Bytes(),
		statePool: make(chan *lua.State, luaStatePoolSize),
	}, nil
}

func (a *LuaAgent) Invoke(
	ctx context.Context, req *Request,
) (*api.ToolInvocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	L := a.getState()
	defer a.returnState(L)

	setupSandbox(L)
	if err := L.Load(bytes.NewReader(a.bytecode), "agent", "b"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	L.PushString(req.Prompt)
	pushToolNames(L, req.AllowedTools)

	if err := L.ProtectedCall(2, 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	if !L.IsTable(-1) {
		L.Pop(1)
		return nil, ErrLuaBadReply
	}

	reply := luaTableToMap(L, -1)
	L.Pop(1)

	return replyToInvocation(reply)
}

func replyToInvocation(reply map[string]any) (*api.ToolInvocation, error) {
	tool, _ := reply["tool"].(string)
	inv := &api.ToolInvocation{Tool: api.ToolName(tool)}

	if args, ok := reply["args"]; ok {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		inv.Args = raw
	}
	return inv, nil
}

func (a *LuaAgent) getState() *lua.State {
	select {
	case L := <-a.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (a *LuaAgent) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case a.statePool <- L:
	default:
	}
}

func setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTable)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalIndex, name)
	}
	L.Pop(1)
}

func pushToolNames(L *lua.State, tools []api.ToolName) {
	L.CreateTable(len(tools), 0)
	for i, tool := range tools {
		L.PushInteger(i + 1)
		L.PushString(string(tool))
		L.SetTable(luaTableIndex)
	}
}

func luaTableToMap(L *lua.State, index int) map[string]any {
	result := map[string]any{}

	L.PushNil()
	for L.Next(index - 1) {
		if key, ok := L.ToString(-2); ok {
			result[key] = luaToGo(L, -1)
		}
		L.Pop(1)
	}
	return result
}

func luaToGo(L *lua.State, index int) any {
	switch {
	case L.IsNil(index):
		return nil
	case L.IsBoolean(index):
		return L.ToBoolean(index)
	case L.IsNumber(index):
		num, _ := L.ToNumber(index)
		if num == float64(int(num)) {
			return int(num)
		}
		return num
	case L.IsString(index):
		str, _ := L.ToString(index)
		return str
	case L.IsTable(index):
		return luaTableToMap(L, index)
	default:
		return nil
	}
}
