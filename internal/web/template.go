package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/flow-pump/internal/status"
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
	"lpm": func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Flow Pump</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.dry { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; padding: 4px 12px; }
</style>
</head>
<body>
<h1>Flow Pump</h1>

<h2>Pump</h2>
<table>
<tr><th>State</th><td id="pump-state" class="{{if .Enabled}}on{{else}}off{{end}}">{{.PumpState}}</td></tr>
<tr><th>Mode</th><td>{{.Config.Mode}}{{if eq .Config.Mode "pwm"}} {{.Config.PWMHz}} Hz, duty {{.Config.DutyNum}}/{{.Config.DutyDen}}{{end}}</td></tr>
<tr><th>Control</th><td>
<form method="post" action="/enable?on=true" style="display:inline"><button type="submit">On</button></form>
<form method="post" action="/enable?on=false" style="display:inline"><button type="submit">Off</button></form>
</td></tr>
</table>

<h2>Flow</h2>
<table>
{{if .HasReading}}<tr><th>Rate</th><td>{{lpm .Reading.RateLPM}} L/min</td></tr>
<tr><th>Pulses</th><td>{{.Reading.Pulses}} (+{{.Reading.Delta}})</td></tr>
<tr><th>Dry run</th><td class="{{if .Reading.IsDry}}dry{{else}}off{{end}}">{{if .Reading.IsDry}}YES{{else}}no{{end}}</td></tr>
<tr><th>Last sample</th><td>{{.Reading.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Rate</th><td>no samples yet</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Dry runs</th><td>{{.Counts.DryRuns}}</td></tr>
<tr><th>Recoveries</th><td>{{.Counts.Recoveries}}</td></tr>
<tr><th>Enable cycles</th><td>{{.Counts.EnableCycles}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>K factor</th><td>{{.Config.KHzPerLPM}} Hz per L/min</td></tr>
<tr><th>Sample period</th><td>{{.Config.SamplePeriodMs}}ms</td></tr>
<tr><th>Dry threshold</th><td>{{.Config.MinRateLPM}} L/min after {{.Config.GraceSeconds}}s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
