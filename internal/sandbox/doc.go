/*
Package sandbox runs JavaScript API modules on the goja engine.

A module file is evaluated CommonJS style and must export:

	module.exports = {
	  config: { name: "weather", description: "...", tags: ["demo"] },
	  initialize: async ({ req, res, log }) => {
	    const page = await require("http").get("https://example.com")
	    res.json({ title: page.html().title() })
	  },
	}

Files whose exports lack either member are reported as module.ErrNoDescriptor
and skipped by discovery. Syntax errors and top-level exceptions are load
errors.

# Runtimes

goja runtimes are single threaded, so each module owns a Pool of runtimes
that grows on demand up to Config.PoolSize. Every runtime evaluates the file
on its own; top-level state is per runtime, not per module.

A call that outlives Config.Timeout or its request context is interrupted
and the runtime is discarded.

# Host modules

require resolves two names only:
  - scraper: HTML parsing, CSS/XPath selection, sanitizing
  - http: outbound GET and generic requests through the shared client

There is no file system or process access and no timers.
*/
package sandbox
