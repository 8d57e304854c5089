package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/mailguard/internal/logic"
	"github.com/sweeney/mailguard/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime":    formatUptime,
	"doorClass": doorClass,
	"doorLabel": doorLabel,
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

// formatUptime renders d as "3d 4h 5m 6s", omitting leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}
	out := ""
	for i, p := range parts {
		if out == "" && p.n == 0 && i < len(parts)-1 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%d%s", p.n, p.unit)
	}
	return out
}

func doorClass(d logic.DoorState) string {
	switch d {
	case logic.DoorOpen:
		return "open"
	case logic.DoorClosed:
		return "closed"
	}
	return "unknown"
}

func doorLabel(d logic.DoorState) string {
	if d == "" {
		return "UNKNOWN"
	}
	return string(d)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MailGuard {{.Config.Serial}}</title>
<style>
body { font: 14px/1.4 system-ui, sans-serif; background: #f4f4f0; color: #222; max-width: 640px; margin: 1.5em auto; padding: 0 1em; }
h1 { font-size: 1.3em; display: flex; align-items: center; gap: 8px; }
h2 { font-size: 1em; text-transform: uppercase; letter-spacing: .05em; color: #666; margin: 1.5em 0 .3em; }
table { width: 100%; background: #fff; border-radius: 6px; border-spacing: 0; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
td, th { padding: 6px 10px; text-align: left; }
tr + tr td, tr + tr th { border-top: 1px solid #eee; }
th { font-weight: normal; color: #555; width: 45%; }
.open { color: #b36b00; font-weight: bold; }
.closed { color: #2d7d2d; }
.unknown, .disconnected { color: #c0392b; }
.connected { color: #2d7d2d; }
#live-dot { width: 9px; height: 9px; border-radius: 50%; background: #e0a000; }
#live-dot.ok { background: #2d7d2d; }
#live-dot.err { background: #c0392b; }
</style>
</head>
<body>
<h1>MailGuard {{.Config.Serial}} <span id="live-dot" title="connecting"></span></h1>

<h2>Mailbox</h2>
<table>
<tr><th>Door</th><td id="door" class="{{doorClass .Door}}">{{doorLabel .Door}}</td></tr>
<tr><th>Weight baseline</th><td id="baseline">{{printf "%.1f" .Baseline}} g</td></tr>
<tr><th>Photo sequence</th><td id="sequence">{{if .Sequence.Active}}{{.Sequence.Requested}}/{{.Sequence.Total}}{{else}}idle{{end}}</td></tr>
<tr><th>Battery</th><td id="battery">{{if .BatteryKnown}}{{.Battery}}%{{else}}unknown{{end}}</td></tr>
<tr><th>Last notification</th><td id="last-notify">{{when .LastNotify}}</td></tr>
</table>

<h2>Camera</h2>
<table>
<tr><th>Triggers</th><td id="cam-triggers">{{.Camera.Triggers}}</td></tr>
<tr><th>Uploaded</th><td id="cam-ok">{{.Camera.Successes}}</td></tr>
<tr><th>Failed</th><td id="cam-fail">{{.Camera.Failures}}</td></tr>
<tr><th>No reply</th><td>{{.Camera.Lost}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
{{if .Config.RequireRegistry}}<tr><th>Registered</th><td class="{{if .Registration.Registered}}connected{{else}}disconnected{{end}}">{{if .Registration.Registered}}{{.Registration.DeviceID}}{{else}}no{{end}}</td></tr>{{end}}
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Open</th><td>{{.Counts.Open}}</td></tr>
<tr><th>Close</th><td>{{.Counts.Close}}</td></tr>
<tr><th>Delivery</th><td>{{.Counts.Delivery}}</td></tr>
<tr><th>Removal</th><td>{{.Counts.Removal}}</td></tr>
<tr><th>Low battery</th><td>{{.Counts.LowBattery}}</td></tr>
<tr><th>Heartbeat</th><td>{{.Counts.Heartbeat}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Firmware</th><td>{{.Config.Firmware}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{when .StartTime}}</td></tr>
<tr><th>Door poll</th><td>{{.Config.DoorPollMs}}ms</td></tr>
<tr><th>Cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = cls;
    dot.title = title;
  }
  function text(id, v) {
    document.getElementById(id).textContent = v;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        var door = document.getElementById("door");
        door.textContent = s.door;
        door.className = s.door === "OPEN" ? "open" : s.door === "CLOSED" ? "closed" : "unknown";
        text("baseline", s.weight.baseline_g.toFixed(1) + " g");
        var q = s.photo_sequence;
        text("sequence", q.active ? q.requested + "/" + q.total : "idle");
        text("battery", s.battery_level === undefined ? "unknown" : s.battery_level + "%");
        text("last-notify", s.last_notification || "never");
        text("cam-triggers", s.camera.triggers);
        text("cam-ok", s.camera.successes);
        text("cam-fail", s.camera.failures);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
