package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

const (
	wrapperHead = "(function (exports, require, module, __filename, __dirname) {"
	wrapperTail = "\n})"
)

// Runtime is one goja VM with a module evaluated in it. A Runtime is not
// safe for concurrent use; the Pool hands it to one request at a time.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	host   *Host
	path   string

	exports    *goja.Object
	initialize goja.Callable
	stringify  goja.Callable
	parse      goja.Callable
	required   map[string]goja.Value

	// set for the duration of a call
	ctx    context.Context
	logger *logging.Logger

	broken bool
}

// compile wraps source as a CommonJS function and compiles it once; the
// program is shared by every runtime of the module.
func compile(path string, src []byte) (*goja.Program, error) {
	return goja.Compile(path, wrapperHead+string(src)+wrapperTail, false)
}

// newRuntime creates a VM and evaluates program in it.
func newRuntime(ctx context.Context, program *goja.Program, path string, config Config, host *Host, logger *logging.Logger) (*Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	r := &Runtime{
		vm:       vm,
		config:   config,
		host:     host,
		path:     path,
		required: make(map[string]goja.Value),
		ctx:      ctx,
		logger:   logger,
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	err := r.guard(ctx, func() error {
		fnVal, err := vm.RunProgram(program)
		if err != nil {
			return err
		}
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			return errors.New("module wrapper is not a function")
		}

		mod := vm.NewObject()
		exports := vm.NewObject()
		_ = mod.Set("exports", exports)
		_, err = fn(goja.Undefined(),
			exports,
			vm.ToValue(r.require),
			mod,
			vm.ToValue(path),
			vm.ToValue(filepath.Dir(path)),
		)
		if err != nil {
			return err
		}
		if obj, ok := mod.Get("exports").(*goja.Object); ok {
			r.exports = obj
		}
		return nil
	})
	if err != nil {
		return nil, r.scriptError(PhaseLoad, err)
	}
	return r, nil
}

// Describe reads the exported config and initialize function. ok is false
// when the exports do not have the module shape.
func (r *Runtime) Describe() (cfg module.Config, ok bool) {
	if r.exports == nil {
		return cfg, false
	}
	raw := r.exports.Get("config")
	if raw == nil || goja.IsUndefined(raw) || goja.IsNull(raw) {
		return cfg, false
	}
	fields, isMap := raw.Export().(map[string]interface{})
	if !isMap {
		return cfg, false
	}
	init, isFn := goja.AssertFunction(r.exports.Get("initialize"))
	if !isFn {
		return cfg, false
	}
	r.initialize = init

	cfg.Name, _ = fields["name"].(string)
	cfg.Description, _ = fields["description"].(string)
	if tags, isList := fields["tags"].([]interface{}); isList {
		for _, t := range tags {
			if s, isStr := t.(string); isStr {
				cfg.Tags = append(cfg.Tags, s)
			}
		}
	}
	return cfg, true
}

// Invoke runs initialize with a context object bound to mctx. A thrown
// exception, a rejected promise and a still pending promise are all errors.
func (r *Runtime) Invoke(mctx *module.Context) error {
	if r.initialize == nil {
		return &ScriptError{Path: r.path, Phase: PhaseInitialize, Message: "module has no initialize function"}
	}

	r.ctx = mctx.Ctx()
	r.logger = mctx.Logger
	if r.logger == nil {
		r.logger = logging.Nop()
	}
	defer func() {
		r.ctx = context.Background()
	}()

	err := r.guard(r.ctx, func() error {
		ret, err := r.initialize(goja.Undefined(), r.newContextObject(mctx))
		if err != nil {
			return err
		}
		if ret == nil {
			return nil
		}
		p, isPromise := ret.Export().(*goja.Promise)
		if !isPromise {
			return nil
		}
		switch p.State() {
		case goja.PromiseStateRejected:
			return &ScriptError{Path: r.path, Phase: PhaseInitialize, Message: r.describe(p.Result())}
		case goja.PromiseStatePending:
			return ErrUnsettled
		}
		return nil
	})
	if err != nil {
		return r.scriptError(PhaseInitialize, err)
	}
	return nil
}

// guard runs fn and interrupts the VM when ctx ends or the timeout passes.
// A runtime that was interrupted is marked broken and never reused.
func (r *Runtime) guard(ctx context.Context, fn func() error) error {
	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var fired atomic.Bool
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-done:
		case <-ctx.Done():
			fired.Store(true)
			r.vm.Interrupt(ctx.Err())
		case <-timeout:
			fired.Store(true)
			r.vm.Interrupt(ErrTimeout)
		}
	}()

	err := fn()
	close(done)
	<-exited

	if fired.Load() {
		r.broken = true
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return cause
			}
		}
	}
	return err
}

func (r *Runtime) setupGlobals() error {
	json, ok := r.vm.Get("JSON").(*goja.Object)
	if !ok {
		return errors.New("JSON global missing")
	}
	if r.stringify, ok = goja.AssertFunction(json.Get("stringify")); !ok {
		return errors.New("JSON.stringify missing")
	}
	if r.parse, ok = goja.AssertFunction(json.Get("parse")); !ok {
		return errors.New("JSON.parse missing")
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}
	return r.vm.Set("process", goja.Undefined())
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole || r.logger == nil {
			return goja.Undefined()
		}
		msg := r.joinArgs(call.Arguments)
		switch level {
		case "warn":
			r.logger.Warn(msg, zap.String("source", "console"))
		case "error":
			r.logger.Error(msg, zap.String("source", "console"))
		case "debug":
			r.logger.Debug(msg, zap.String("source", "console"))
		default:
			r.logger.Info(msg, zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

func (r *Runtime) joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if obj, ok := arg.(*goja.Object); ok && obj.ClassName() != "Error" {
			if data, err := r.encode(arg, ""); err == nil && len(data) > 0 {
				parts[i] = string(data)
				continue
			}
		}
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

// encode runs JSON.stringify inside the VM so key order is the script's
// insertion order. undefined and functions encode to nothing.
func (r *Runtime) encode(v goja.Value, indent string) ([]byte, error) {
	space := goja.Undefined()
	if indent != "" {
		space = r.vm.ToValue(indent)
	}
	if v == nil {
		v = goja.Undefined()
	}
	out, err := r.stringify(goja.Undefined(), v, goja.Null(), space)
	if err != nil {
		return nil, err
	}
	if out == nil || goja.IsUndefined(out) {
		return []byte{}, nil
	}
	return []byte(out.String()), nil
}

// native converts a Go value to plain JS objects through JSON, giving
// scripts real arrays and deterministic key order.
func (r *Runtime) native(v any) goja.Value {
	data, err := module.Marshal(v)
	if err != nil {
		r.throw(err)
	}
	out, err := r.parse(goja.Undefined(), r.vm.ToValue(string(data)))
	if err != nil {
		r.throw(err)
	}
	return out
}

// throw raises err as a JavaScript exception from inside a host function.
func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() != "Error" {
		if data, err := r.encode(v, ""); err == nil && len(data) > 0 {
			return string(data)
		}
	}
	return v.String()
}

func (r *Runtime) scriptError(phase string, err error) error {
	var se *ScriptError
	if errors.As(err, &se) || errors.Is(err, ErrUnsettled) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ScriptError{Path: r.path, Phase: phase, Message: r.describe(ex.Value()), Cause: err}
	}
	return &ScriptError{Path: r.path, Phase: phase, Message: err.Error(), Cause: err}
}

// Close drops the VM.
func (r *Runtime) Close() {
	r.vm = nil
	r.exports = nil
	r.initialize = nil
}

func (r *Runtime) String() string {
	return fmt.Sprintf("runtime(%s)", r.path)
}
