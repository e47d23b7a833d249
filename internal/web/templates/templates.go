// Package templates holds the HTML views rendered by the web server.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ErrorAlert renders an inline error box for HTMX swaps.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><strong>%s</strong>`+
				`<p>%s</p><small>Code: %s</small></div>`,
			templ.EscapeString(message),
			templ.EscapeString(action),
			templ.EscapeString(code),
		)
		return err
	})
}

// DashboardData is what the landing page shows.
type DashboardData struct {
	Sessions     int
	MaxSessions  int
	ActiveJobs   int
	MaxJobs      int
	MaxFileSize  int64
	HistoryStore string
}

// Dashboard renders the landing page with the service load and a small
// client that drives the session API. Activity is fetched per session by the
// client; the page never lists other sessions' work.
func Dashboard(d DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(pageHead)

		fmt.Fprintf(&b, `<section class="stats"><div>Sessions <b>%d / %d</b></div>`+
			`<div>Jobs running <b>%d / %d</b></div><div>Max file size <b>%s</b></div>`+
			`<div>History store <b>%s</b></div></section>`,
			d.Sessions, d.MaxSessions, d.ActiveJobs, d.MaxJobs,
			formatBytes(d.MaxFileSize), templ.EscapeString(d.HistoryStore))

		b.WriteString(uploadPanel)

		b.WriteString(activityPanel)
		b.WriteString(pageScript)
		b.WriteString(`</main></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

const pageHead = `<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Data Sweeper</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d2330}
main{max-width:960px;margin:0 auto;padding:2rem}
section{background:#fff;border-radius:8px;padding:1rem 1.5rem;margin-bottom:1rem}
.stats{display:flex;gap:2rem;flex-wrap:wrap}
table{width:100%;border-collapse:collapse}td,th{text-align:left;padding:.3rem;border-bottom:1px solid #eee}
tr.failed td{color:#b42318}.muted{color:#667085}
.alert-error{background:#fef3f2;border:1px solid #fecdca;padding:.5rem 1rem;border-radius:6px}
</style></head><body><main><h1>Data Sweeper</h1>
<p class="muted">Upload CSV or Excel files, clean them and download the results.</p>`

const uploadPanel = `<section><h2>Convert files</h2>
<form id="upload"><input type="file" name="files" multiple accept=".csv,.xlsx">
<label><input type="checkbox" name="dedupe"> Remove duplicates</label>
<label><input type="checkbox" name="fill"> Fill missing numbers</label>
<input type="text" name="filter" placeholder="Filter, e.g. age &gt; 30">
<select name="format"><option value="csv">CSV</option><option value="xlsx">Excel</option></select>
<button type="submit">Process</button></form>
<div id="result"></div></section>`

const activityPanel = `<section><h2>Your activity</h2>
<p class="muted" id="activity-empty">Nothing has been processed yet.</p>
<table id="activity" hidden><thead><tr><th>Time</th><th>Action</th><th>File</th>
<th>Rows</th><th>Status</th></tr></thead><tbody></tbody></table></section>`

const pageScript = `<script>
const form = document.getElementById('upload');
const out = document.getElementById('result');
const activity = document.getElementById('activity');
async function showActivity(base) {
  const hist = await call('GET', base + '/history?limit=50');
  const body = activity.tBodies[0];
  body.textContent = '';
  for (const e of hist.events) {
    const tr = body.insertRow();
    tr.className = e.status;
    for (const v of [new Date(e.createdAt).toLocaleString(), e.action, e.fileName || '', e.rowsAffected || 0, e.status]) {
      tr.insertCell().textContent = v;
    }
  }
  activity.hidden = hist.events.length === 0;
  document.getElementById('activity-empty').hidden = !activity.hidden;
}
async function call(method, url, body) {
  const opts = {method, headers: {}};
  if (body instanceof FormData) { opts.body = body; }
  else if (body) { opts.body = JSON.stringify(body); opts.headers['Content-Type'] = 'application/json'; }
  const res = await fetch(url, opts);
  const data = await res.json().catch(() => ({}));
  if (!res.ok) throw new Error((data.message || res.statusText) + (data.code ? ' (' + data.code + ')' : ''));
  return data;
}
form.addEventListener('submit', async (ev) => {
  ev.preventDefault();
  out.textContent = 'Working...';
  try {
    const sess = await call('POST', '/api/sessions');
    const base = '/api/sessions/' + sess.id;
    const fd = new FormData();
    for (const f of form.files.files) fd.append('files', f);
    const report = await call('POST', base + '/files', fd);
    out.textContent = '';
    const line = (text, href) => {
      const el = document.createElement(href ? 'a' : 'div');
      el.textContent = text;
      if (href) { el.href = href; el.style.display = 'block'; }
      out.appendChild(el);
    };
    for (const item of report.files) {
      if (item.error) { line(item.name + ': ' + item.error.message); continue; }
      const id = item.file.id;
      try {
        if (form.dedupe.checked) await call('POST', base + '/files/' + id + '/dedupe');
        if (form.fill.checked) await call('POST', base + '/files/' + id + '/fill-missing');
        if (form.filter.value.trim()) await call('POST', base + '/files/' + id + '/filter', {expression: form.filter.value});
        const rec = await call('POST', base + '/files/' + id + '/convert', {format: form.format.value});
        line(rec.name, base + '/exports/' + rec.id);
      } catch (err) { line(item.name + ': ' + err.message); }
    }
    line('processed_files.zip', base + '/archive');
    await showActivity(base).catch(() => {});
  } catch (err) { out.textContent = err.message; }
});
</script>`
