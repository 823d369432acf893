package web

import "github.com/gofiber/fiber/v2"

// handleDashboard serves a minimal live view of the queue and issues
func (s *Server) handleDashboard(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(dashboardHTML)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>FluxScan</title>
<style>
body { font-family: 'JetBrains Mono', monospace; background: #0D0D0D; color: #E0E0E0; margin: 24px; }
h1 { color: #00FFFF; }
h2 { color: #FF00FF; }
table { border-collapse: collapse; width: 100%; }
td, th { padding: 4px 8px; border-bottom: 1px solid #222; text-align: left; }
.Queued { color: #FFFF00; } .Running { color: #00FFFF; }
.Completed { color: #00FF00; } .Error { color: #FF0055; }
</style>
</head>
<body>
<h1>FluxScan</h1>
<h2>Queue</h2>
<table><thead><tr><th>Scan</th><th>Request</th><th>Status</th></tr></thead><tbody id="queue"></tbody></table>
<h2>Issues</h2>
<table><thead><tr><th>Severity</th><th>Confidence</th><th>Title</th></tr></thead><tbody id="issues"></tbody></table>
<script>
const scans = new Map();
function cell(row, text, cls) {
  const td = row.insertCell();
  td.textContent = text;
  if (cls) td.className = cls;
}
function renderQueue() {
  const body = document.getElementById('queue');
  body.innerHTML = '';
  for (const s of scans.values()) {
    const row = body.insertRow();
    cell(row, s.scanId);
    cell(row, s.baseRequestUrl || s.baseRequestId);
    cell(row, s.status, s.status);
  }
}
function addIssue(i) {
  const row = document.getElementById('issues').insertRow(0);
  cell(row, i.severity);
  cell(row, i.confidence);
  cell(row, i.title);
}
fetch('/api/issues').then(r => r.json()).then(list => list.forEach(addIssue));
const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = (msg) => {
  const ev = JSON.parse(msg.data);
  if (ev.type === 'status') { scans.set(ev.data.scanId, ev.data); renderQueue(); }
  if (ev.type === 'issue') addIssue(ev.data);
};
</script>
</body>
</html>`
