package banner

import (
	"fmt"
	"io"
	"os"

	"dmfeed/pkg/config"
)

const banner = `
     _            __               _
  __| |_ __ ___  / _| ___  ___  __| |
 / _` + "`" + ` | '_ ` + "`" + ` _ \| |_ / _ \/ _ \/ _` + "`" + ` |
| (_| | | | | | |  _|  __/  __/ (_| |
 \__,_|_| |_| |_|_|  \___|\___|\__,_|
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	Fprint(os.Stdout, eff, version)
}

// Fprint writes the banner and config summary to w.
func Fprint(w io.Writer, eff config.EffectiveConfigResult, version string) {
	var addr = eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	fmt.Fprintf(w, "DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config: %s\n", src)

	cfg := eff.Config
	if cfg == nil {
		return
	}
	fmt.Fprintln(w, "\n== Feed =======================================================")
	fmt.Fprintf(w, "- Page size: %d\n", cfg.Feed.PageSize)
	fmt.Fprintf(w, "- Load timeout: %s\n", cfg.Feed.LoadTimeout)
	if cfg.Feed.EditWindow.Duration() < 0 {
		fmt.Fprintln(w, "- Edit window: unlimited")
	} else {
		fmt.Fprintf(w, "- Edit window: %s\n", cfg.Feed.EditWindow)
	}

	fmt.Fprintln(w, "\n== Services ===================================================")
	switch {
	case !cfg.Notify.Enabled:
		fmt.Fprintln(w, "- Notifications: disabled")
	case cfg.Notify.GatewayURL != "":
		fmt.Fprintf(w, "- Notifications: gateway %s\n", cfg.Notify.GatewayURL)
	default:
		fmt.Fprintln(w, "- Notifications: log only (no gateway_url)")
	}
	fmt.Fprintf(w, "- Blob max size: %s\n", cfg.Blobs.MaxSize)
	if cfg.Sweep.Enabled {
		fmt.Fprintf(w, "- Blob sweep: enabled (cron=%s)\n", cfg.Sweep.Cron)
	} else {
		fmt.Fprintln(w, "- Blob sweep: disabled")
	}
	if cfg.Store.DisablePebbleWAL {
		fmt.Fprintln(w, "- Pebble WAL: DISABLED (writes may be lost on crash)")
	}
}
