package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/pulse-counter/internal/logic"
	"github.com/sweeney/pulse-counter/internal/status"
)

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
	"phaseClass": func(p logic.Phase) string {
		switch p {
		case logic.PhaseTracking:
			return "on"
		case logic.PhaseFailed:
			return "failed"
		default:
			return "unknown"
		}
	},
	"rate": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.failed { color: red; font-weight: bold; }
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
<h1>{{.Config.Name}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Pulses</h2>
<table>
<tr><th>State</th><td class="{{phaseClass .Pulse.Phase}}">{{if .Pulse.Phase}}{{.Pulse.Phase}}{{else}}UNKNOWN{{end}}</td></tr>
{{if .Pulse.Err}}<tr><th>Error</th><td class="failed">{{.Pulse.Err}}</td></tr>{{end}}
<tr><th>Rate</th><td id="rate">{{if .Pulse.HasRate}}{{rate .Pulse.Rate}}/min{{else}}-{{end}}</td></tr>
{{if .Pulse.TrackTotal}}<tr><th>Total</th><td id="total">{{.Pulse.Total}}</td></tr>{{end}}
<tr><th>Readings</th><td>{{.Pulse.Readings}}</td></tr>
<tr><th>Resumed from sleep</th><td>{{if .Pulse.Resumed}}yes{{else}}no{{end}}</td></tr>
<tr><th>Iteration time</th><td>{{.Pulse.MeanExecTime}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.NATS}}<tr><th>NATS</th><td>{{.Config.NATS}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pin</th><td>GPIO{{.Config.Pin}}</td></tr>
<tr><th>Edges</th><td>rising {{.Config.RisingEdge}}, falling {{.Config.FallingEdge}}</td></tr>
<tr><th>Wake period</th><td>{{.Config.WakePeriodMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.Debounce}} samples ({{.Config.MinPulseMs}}ms min pulse)</td></tr>
<tr><th>Update</th><td>{{.Config.UpdateMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "energy/pulse/sensor/readings";
  var dot = document.getElementById("live-dot");
  var rateEl = document.getElementById("rate");
  var totalEl = document.getElementById("total");

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
      if (!msg.pulse) {
        return;
      }
      if (msg.pulse.rate_per_min !== undefined) {
        rateEl.textContent = msg.pulse.rate_per_min.toFixed(1) + "/min";
      }
      if (totalEl && msg.pulse.total !== undefined) {
        totalEl.textContent = msg.pulse.total;
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
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
