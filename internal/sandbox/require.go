package sandbox

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/ScraperAPI/internal/providers/http/client"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/scraper"
	"github.com/GriffinCanCode/ScraperAPI/internal/shared/encoding"
)

var errNoFetch = errors.New("http module is not available")

// require resolves the host modules scripts may import. Nothing is read
// from disk.
func (r *Runtime) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	if v, ok := r.required[name]; ok {
		return v
	}

	var mod *goja.Object
	switch name {
	case "scraper":
		mod = r.scraperModule()
	case "http":
		mod = r.httpModule()
	default:
		panic(r.vm.NewTypeError(fmt.Sprintf("Cannot find module '%s'", name)))
	}
	r.required[name] = mod
	return mod
}

func (r *Runtime) scraperModule() *goja.Object {
	ops := r.host.scraper()
	mod := r.vm.NewObject()

	_ = mod.Set("load", func(call goja.FunctionCall) goja.Value {
		doc, err := ops.ParseString(call.Argument(0).String())
		if err != nil {
			r.throw(err)
		}
		return r.documentObject(doc, call.Argument(1))
	})
	_ = mod.Set("sanitize", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(ops.Sanitize(call.Argument(0).String()))
	})
	_ = mod.Set("stripTags", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(ops.StripTags(call.Argument(0).String()))
	})
	_ = mod.Set("normalize", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(scraper.NormalizeWhitespace(call.Argument(0).String()))
	})
	_ = mod.Set("match", func(call goja.FunctionCall) goja.Value {
		found, err := ops.Match(call.Argument(0).String(), call.Argument(1).String())
		if err != nil {
			r.throw(err)
		}
		return r.native(found)
	})
	return mod
}

// documentObject wraps a parsed page. base, when given, resolves links.
func (r *Runtime) documentObject(doc *scraper.Document, base goja.Value) *goja.Object {
	baseURL := ""
	if base != nil && !goja.IsUndefined(base) && !goja.IsNull(base) {
		baseURL = base.String()
	}

	obj := r.vm.NewObject()
	_ = obj.Set("title", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(doc.Title())
	})
	_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(doc.Text())
	})
	_ = obj.Set("select", func(call goja.FunctionCall) goja.Value {
		els, err := doc.Select(call.Argument(0).String())
		if err != nil {
			r.throw(err)
		}
		return r.native(els)
	})
	_ = obj.Set("xpath", func(call goja.FunctionCall) goja.Value {
		els, err := doc.XPath(call.Argument(0).String())
		if err != nil {
			r.throw(err)
		}
		return r.native(els)
	})
	_ = obj.Set("links", func(goja.FunctionCall) goja.Value {
		return r.native(doc.Links(baseURL))
	})
	_ = obj.Set("meta", func(goja.FunctionCall) goja.Value {
		return r.native(doc.Meta())
	})
	_ = obj.Set("table", func(call goja.FunctionCall) goja.Value {
		t, err := doc.Table(call.Argument(0).String())
		if err != nil {
			r.throw(err)
		}
		return r.native(t)
	})
	_ = obj.Set("extract", func(call goja.FunctionCall) goja.Value {
		var q scraper.Query
		r.decode(call.Argument(0), &q)
		rows, err := doc.Extract(q)
		if err != nil {
			r.throw(err)
		}
		return r.native(rows)
	})
	return obj
}

func (r *Runtime) httpModule() *goja.Object {
	mod := r.vm.NewObject()

	_ = mod.Set("get", func(call goja.FunctionCall) goja.Value {
		req := client.Request{Method: "GET", URL: call.Argument(0).String()}
		if h := call.Argument(1); !goja.IsUndefined(h) && !goja.IsNull(h) {
			r.decode(h, &req.Headers)
		}
		return r.fetch(req)
	})
	_ = mod.Set("request", func(call goja.FunctionCall) goja.Value {
		var req client.Request
		r.decode(call.Argument(0), &req)
		return r.fetch(req)
	})
	return mod
}

func (r *Runtime) fetch(req client.Request) goja.Value {
	if r.host == nil || r.host.Fetch == nil {
		r.throw(errNoFetch)
	}
	resp, err := r.host.Fetch.Do(r.ctx, req)
	if err != nil {
		r.throw(err)
	}

	obj, ok := r.native(resp).(*goja.Object)
	if !ok {
		r.throw(errors.New("unexpected response encoding"))
	}
	body := resp.Text()
	_ = obj.Set("ok", resp.OK())
	_ = obj.Set("body", body)
	_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(body)
	})
	_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
		v, err := r.parse(goja.Undefined(), r.vm.ToValue(body))
		if err != nil {
			r.throw(err)
		}
		return v
	})
	_ = obj.Set("html", func(goja.FunctionCall) goja.Value {
		doc, err := r.host.scraper().Parse(resp.Body, resp.ContentType)
		if err != nil {
			r.throw(err)
		}
		return r.documentObject(doc, r.vm.ToValue(resp.URL))
	})
	return obj
}

// decode copies a script value into a Go value through JSON.
func (r *Runtime) decode(v goja.Value, dst any) {
	data, err := r.encode(v, "")
	if err != nil {
		r.throw(err)
	}
	if len(data) == 0 {
		return
	}
	if err := encoding.Unmarshal(data, dst); err != nil {
		r.throw(fmt.Errorf("invalid argument: %w", err))
	}
}

func (h *Host) scraper() *scraper.Ops {
	if h == nil || h.Scraper == nil {
		return defaultOps
	}
	return h.Scraper
}

var defaultOps = scraper.NewOps()
