package sandbox

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

// jsValue lets module.Response encode a script value with the VM's own
// JSON.stringify.
type jsValue struct {
	rt *Runtime
	v  goja.Value
}

func (j jsValue) MarshalJSON() ([]byte, error) {
	return j.rt.encode(j.v, "")
}

func (j jsValue) MarshalIndentJSON(indent string) ([]byte, error) {
	return j.rt.encode(j.v, indent)
}

// newContextObject builds the {req, res, log} argument of initialize.
// request, response and logger are aliases.
func (r *Runtime) newContextObject(mctx *module.Context) *goja.Object {
	req := r.newRequestObject(mctx.Request)
	res := r.newResponseObject(mctx.Response)
	log := r.newLogObject()

	ctx := r.vm.NewObject()
	_ = ctx.Set("req", req)
	_ = ctx.Set("request", req)
	_ = ctx.Set("res", res)
	_ = ctx.Set("response", res)
	_ = ctx.Set("log", log)
	_ = ctx.Set("logger", log)
	return ctx
}

func (r *Runtime) newRequestObject(req *http.Request) goja.Value {
	if req == nil {
		return goja.Undefined()
	}

	query := make(map[string]string)
	for k, v := range req.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	headers := make(map[string]string)
	for k, v := range req.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}
	ip := req.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return r.native(map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.RequestURI(),
		"path":    req.URL.Path,
		"query":   query,
		"headers": headers,
		"ip":      ip,
		"params":  map[string]string{},
	})
}

// newResponseObject exposes an Express-like API over the buffered response.
func (r *Runtime) newResponseObject(resp *module.Response) *goja.Object {
	res := r.vm.NewObject()

	setHeader := func(call goja.FunctionCall) goja.Value {
		resp.Set(call.Argument(0).String(), call.Argument(1).String())
		return res
	}
	sendJSON := func(v goja.Value) {
		if err := resp.JSON(jsValue{rt: r, v: v}); err != nil {
			r.throw(err)
		}
	}

	_ = res.Set("status", func(call goja.FunctionCall) goja.Value {
		code := call.Argument(0).ToInteger()
		if code < 100 || code > 999 {
			r.throw(fmt.Errorf("%w: %s", module.ErrInvalidStatus, call.Argument(0).String()))
		}
		resp.Status(int(code))
		return res
	})
	_ = res.Set("set", setHeader)
	_ = res.Set("header", setHeader)
	_ = res.Set("setHeader", setHeader)
	_ = res.Set("type", func(call goja.FunctionCall) goja.Value {
		resp.Set("Content-Type", call.Argument(0).String())
		return res
	})
	_ = res.Set("json", func(call goja.FunctionCall) goja.Value {
		sendJSON(call.Argument(0))
		return res
	})
	_ = res.Set("send", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		switch {
		case goja.IsUndefined(v) || goja.IsNull(v):
			resp.WriteHeader(resp.StatusCode())
		case isString(v):
			if err := resp.SendString(v.String()); err != nil {
				r.throw(err)
			}
		case isObject(v):
			sendJSON(v)
		default:
			if err := resp.SendString(v.String()); err != nil {
				r.throw(err)
			}
		}
		return res
	})
	_ = res.Set("end", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		if goja.IsUndefined(v) || goja.IsNull(v) {
			resp.WriteHeader(resp.StatusCode())
			return res
		}
		if _, err := resp.Write([]byte(v.String())); err != nil {
			r.throw(err)
		}
		return res
	})
	return res
}

func (r *Runtime) newLogObject() *goja.Object {
	log := r.vm.NewObject()
	_ = log.Set("main", func(call goja.FunctionCall) goja.Value {
		r.logger.Info(r.joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = log.Set("info", func(call goja.FunctionCall) goja.Value {
		r.logger.Info(r.joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = log.Set("debug", func(call goja.FunctionCall) goja.Value {
		r.logger.Debug(r.joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = log.Set("warn", func(call goja.FunctionCall) goja.Value {
		r.logger.Warn(r.joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = log.Set("error", func(call goja.FunctionCall) goja.Value {
		r.logger.Error(r.joinArgs(call.Arguments))
		return goja.Undefined()
	})
	return log
}

func isString(v goja.Value) bool {
	_, ok := v.Export().(string)
	return ok
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}
