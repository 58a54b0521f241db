package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/wdt-ticker/internal/mqtt"
	"github.com/sweeney/wdt-ticker/internal/status"
)

// MQTTScriptURL is where the live page loads the browser MQTT client from.
const MQTTScriptURL = "https://unpkg.com/mqtt@5.10.1/dist/mqtt.min.js"

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if not .Config.WSBroker}}<meta http-equiv="refresh" content="5">{{end}}
<title>WDT Ticker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.high { color: green; font-weight: bold; }
.low { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>WDT Ticker{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Output</h2>
<table>
<tr><th>PB1</th><td id="level" class="{{if eq (orUnknown (printf "%s" .Level)) "HIGH"}}high{{else if eq (orUnknown (printf "%s" .Level)) "LOW"}}low{{else}}unknown{{end}}">{{orUnknown (printf "%s" .Level)}}</td></tr>
<tr><th>Loop</th><td>{{orUnknown (printf "%s" .LoopState)}}</td></tr>
</table>

<h2>Ticks</h2>
<table>
<tr><th>Interrupts</th><td id="fired">{{.Fired}}</td></tr>
<tr><th>Observed</th><td id="observed">{{.Observed}}</td></tr>
<tr><th>Coalesced</th><td id="coalesced">{{.Coalesced}}</td></tr>
<tr><th>Last tick</th><td id="last-tick">-</td></tr>
</table>

<h2>Watchdog</h2>
<table>
<tr><th>Mode</th><td>{{orUnknown .Watchdog.Mode}}</td></tr>
<tr><th>Timeout</th><td>{{.Watchdog.TimeoutMs}}ms</td></tr>
<tr><th>Boots</th><td>{{.Boots}}</td></tr>
<tr><th>Resets</th><td>{{.Resets}}</td></tr>
<tr><th>Last reset cause</th><td>{{orUnknown .LastResetCause}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>GPIO mirror</th><td>{{if lt .Config.GPIOLine 0}}disabled{{else}}{{.Config.GPIOChip}}:{{.Config.GPIOLine}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="{{.ScriptURL}}"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var levelEl = document.getElementById("level");

  function setText(id, v) {
    document.getElementById(id).textContent = v;
  }

  function setLevel(level) {
    levelEl.textContent = level;
    levelEl.className = level === "HIGH" ? "high" : level === "LOW" ? "low" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.tick) {
        setLevel(msg.tick.level);
        setText("fired", msg.tick.fired);
        setText("observed", msg.tick.seq);
        setText("coalesced", msg.tick.coalesced);
        setText("last-tick", msg.tick.timestamp);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Topic     string
		ScriptURL string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Topic:     mqtt.Topic,
		ScriptURL: MQTTScriptURL,
	}
	indexTmpl.Execute(w, data)
}
