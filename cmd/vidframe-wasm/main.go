//go:build js && wasm

// Command vidframe-wasm exposes provider resolution and the popup sandbox
// to a browser page:
//
//	vidframe.providers()                         -> [{id, name, quality}]
//	vidframe.resolve(provider, kind, id, s, e)   -> url or ""
//	vidframe.attach(iframe, onBlocked)           -> mounts the sandbox; same-origin
//	                                                content sees a guarded parent
//	vidframe.detach()                            -> tears it down
//	vidframe.blocked()                           -> blocked attempts
package main

import (
	"syscall/js"

	"vidframe/internal/log"
	"vidframe/internal/media"
	"vidframe/internal/provider"
	"vidframe/internal/sandbox"
	"vidframe/internal/sandbox/dom"
)

func main() {
	log.Configure(log.Config{Level: "warn"})

	var onBlocked js.Value
	slot := sandbox.NewSlot(sandbox.Config{
		Host: dom.Host(),
		OnBlocked: func(total int64) {
			if onBlocked.Type() == js.TypeFunction {
				onBlocked.Invoke(total)
			}
		},
	})

	api := map[string]any{
		"providers": js.FuncOf(func(js.Value, []js.Value) any {
			var out []any
			for _, d := range provider.Default().List() {
				out = append(out, map[string]any{"id": d.ID, "name": d.DisplayName, "quality": d.QualityLabel})
			}
			return out
		}),
		"resolve": js.FuncOf(func(_ js.Value, args []js.Value) any {
			if len(args) < 3 {
				return ""
			}
			kind, err := media.ParseKind(args[1].String())
			if err != nil {
				return ""
			}
			ref := media.MovieRef(args[2].String())
			if kind == media.Series {
				ref = media.EpisodeRef(args[2].String(), argString(args, 3), argString(args, 4))
			}
			url, err := provider.Resolve(ref, args[0].String())
			if err != nil {
				return ""
			}
			return url
		}),
		"attach": js.FuncOf(func(_ js.Value, args []js.Value) any {
			if len(args) == 0 {
				return nil
			}
			onBlocked = js.Undefined()
			if len(args) > 1 {
				onBlocked = args[1]
			}
			slot.Mount(dom.NewFrame(args[0]))
			return nil
		}),
		"detach": js.FuncOf(func(js.Value, []js.Value) any {
			slot.Unmount()
			return nil
		}),
		"blocked": js.FuncOf(func(js.Value, []js.Value) any {
			return slot.BlockedCount()
		}),
	}
	js.Global().Set("vidframe", js.ValueOf(api))

	select {}
}

func argString(args []js.Value, i int) string {
	if i >= len(args) || args[i].IsUndefined() || args[i].IsNull() {
		return ""
	}
	return args[i].String()
}
