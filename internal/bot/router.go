package bot

import (
	"context"
	"sort"
	"strings"
)

// CommandHandler handles a slash command from a user.
type CommandHandler func(ctx context.Context, userId int64) error

// CallbackHandler handles a button press. arg is the callback data with
// the registered prefix stripped.
type CallbackHandler func(ctx context.Context, userId int64, arg string) error

// TextHandler handles free text while a session sits in a given step.
type TextHandler func(ctx context.Context, userId int64, text string) error

type callbackRoute struct {
	prefix    string
	adminOnly bool
	handler   CallbackHandler
}

type commandRoute struct {
	adminOnly bool
	handler   CommandHandler
}

// Router is the fixed trigger table, built once at startup. It holds
// registrations only; all conversational state lives in the session
// store.
type Router struct {
	commands  map[string]commandRoute
	callbacks []callbackRoute
	steps     map[Step]TextHandler
}

func NewRouter() *Router {
	return &Router{
		commands: make(map[string]commandRoute),
		steps:    make(map[Step]TextHandler),
	}
}

func (r *Router) Command(name string, handler CommandHandler) {
	r.commands[name] = commandRoute{handler: handler}
}

func (r *Router) AdminCommand(name string, handler CommandHandler) {
	r.commands[name] = commandRoute{adminOnly: true, handler: handler}
}

func (r *Router) Callback(prefix string, handler CallbackHandler) {
	r.callbacks = append(r.callbacks, callbackRoute{prefix: prefix, handler: handler})
	r.sortCallbacks()
}

func (r *Router) AdminCallback(prefix string, handler CallbackHandler) {
	r.callbacks = append(r.callbacks, callbackRoute{prefix: prefix, adminOnly: true, handler: handler})
	r.sortCallbacks()
}

func (r *Router) Step(step Step, handler TextHandler) {
	r.steps[step] = handler
}

// Longest prefix wins so that "claim:" and "claim_project:" cannot
// shadow each other regardless of registration order.
func (r *Router) sortCallbacks() {
	sort.SliceStable(r.callbacks, func(i, j int) bool {
		return len(r.callbacks[i].prefix) > len(r.callbacks[j].prefix)
	})
}

func (r *Router) lookupCommand(text string) (commandRoute, bool) {
	name := strings.Fields(text)[0]
	route, ok := r.commands[name]
	return route, ok
}

func (r *Router) lookupCallback(data string) (callbackRoute, string, bool) {
	for _, route := range r.callbacks {
		if strings.HasPrefix(data, route.prefix) {
			return route, strings.TrimPrefix(data, route.prefix), true
		}
	}
	return callbackRoute{}, "", false
}

func (r *Router) lookupStep(step Step) (TextHandler, bool) {
	handler, ok := r.steps[step]
	return handler, ok
}
