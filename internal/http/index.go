package http

import (
	"html/template"
	"net/http"

	"github.com/tomek7667/devconsole/internal/rescache"
	"go.uber.org/zap"
)

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>devconsole</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            background: #1e1e1e;
            color: #e0e0e0;
            padding: 24px;
        }
        .container { max-width: 1100px; margin: 0 auto; }
        header { display: flex; align-items: baseline; gap: 12px; margin-bottom: 20px; }
        header h1 { font-size: 22px; font-weight: 500; }
        .muted { color: #888; font-size: 13px; }
        .update { color: #e5c07b; font-size: 13px; }
        .tabs { display: flex; gap: 8px; margin-bottom: 16px; flex-wrap: wrap; }
        button, select, input, textarea {
            padding: 8px 14px;
            font-size: 14px;
            background: transparent;
            color: #e0e0e0;
            border: 1px solid #444;
            border-radius: 4px;
        }
        button { cursor: pointer; }
        button:hover, select:hover { border-color: #888; }
        button.active { border-color: #888; background: #2d2d2d; }
        input, textarea, select { background: #2d2d2d; }
        input:focus, textarea:focus { outline: none; border-color: #888; }
        textarea { width: 100%; min-height: 320px; font-family: ui-monospace, monospace; }
        .panel { display: none; }
        .panel.active { display: block; }
        .toolbar { display: flex; gap: 8px; align-items: center; margin-bottom: 12px; flex-wrap: wrap; }
        table { width: 100%; border-collapse: collapse; background: #2d2d2d; border-radius: 4px; }
        th, td { text-align: left; padding: 10px 12px; border-bottom: 1px solid #3a3a3a; font-size: 14px; }
        th { color: #888; font-weight: 500; }
        tr.clickable:hover { background: #353535; cursor: pointer; }
        .danger:hover { background: #4a2a2a; color: #e57373; }
        .error { color: #e57373; margin-bottom: 12px; font-size: 14px; }
        .crumbs a { color: #8ab4f8; cursor: pointer; }
        .crumbs span.sep { color: #666; margin: 0 6px; }
        .field { display: flex; gap: 10px; align-items: center; margin-bottom: 6px; }
        .field label { flex: 0 0 40%; font-family: ui-monospace, monospace; font-size: 13px; overflow-wrap: anywhere; }
        .field input { flex: 1; }
        .empty { color: #888; padding: 24px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>devconsole</h1>
            <span class="muted">{{.Version}}</span>
            <span class="update" id="update"></span>
        </header>
        <div class="tabs" id="tabs">
            {{range .Kinds}}<button data-tab="res" data-kind="{{.}}">{{.}}</button>{{end}}
            <button data-tab="disk">disk</button>
            <button data-tab="config">config</button>
            <button data-tab="projects">projects</button>
            <button data-tab="proxies">proxies</button>
        </div>

        <div class="panel" id="panel-res">
            <div class="toolbar">
                <button id="refresh">Refresh</button>
                <span class="muted" id="resStatus"></span>
            </div>
            <div class="error" id="resError"></div>
            <table id="resTable"></table>
        </div>

        <div class="panel" id="panel-disk">
            <div class="toolbar crumbs" id="crumbs"></div>
            <div class="error" id="diskError"></div>
            <table id="diskTable"></table>
        </div>

        <div class="panel" id="panel-config">
            <div class="toolbar">
                <select id="dirs"></select>
                <select id="files"></select>
                <button id="saveConfig">Save</button>
            </div>
            <div class="error" id="configError"></div>
            <div id="fields"></div>
            <textarea id="raw" spellcheck="false"></textarea>
        </div>

        <div class="panel" id="panel-projects">
            <form class="toolbar" id="projectForm">
                <select id="template"></select>
                <input id="projectName" placeholder="my-app" required>
                <input id="projectPath" placeholder="/home/me/code" required>
                <button type="submit">Create</button>
            </form>
            <div class="error" id="projectError"></div>
            <pre class="muted" id="projectOutput"></pre>
        </div>

        <div class="panel" id="panel-proxies">
            <div class="error" id="proxyError"></div>
            <table id="proxyTable"></table>
        </div>
    </div>
    <script>
        const columns = {
            tools: ['fullName', 'version', 'source', 'sizeBytes', 'installPath'],
            ports: ['port', 'protocol', 'state', 'pid', 'processName'],
            processes: ['pid', 'name', 'cpuUsage', 'memoryMb', 'status'],
            caches: ['name', 'path', 'sizeBytes', 'exists']
        };
        const uninstallable = ['npm', 'cargo', 'pip', 'go'];
        let kind = null, disk = null, doc = null;

        function esc(v) {
            return String(v == null ? '' : v).replace(/[&<>"']/g, c => '&#' + c.charCodeAt(0) + ';');
        }
        function bytes(n) {
            const u = ['B', 'KB', 'MB', 'GB', 'TB'];
            let i = 0;
            while (n >= 1024 && i < u.length - 1) { n /= 1024; i++; }
            return n.toFixed(i ? 1 : 0) + ' ' + u[i];
        }
        async function api(method, path, body) {
            const opts = {method, headers: {}};
            if (method !== 'GET') {
                opts.headers['Content-Type'] = 'application/json';
            }
            if (body !== undefined) {
                opts.body = JSON.stringify(body);
            }
            const res = await fetch('/api' + path, opts);
            if (res.status === 204) return null;
            const data = await res.json();
            if (!res.ok) throw new Error(data.error || res.statusText);
            return data;
        }
        function show(tab) {
            document.querySelectorAll('.panel').forEach(p => p.classList.toggle('active', p.id === 'panel-' + tab));
        }

        async function loadResource(force) {
            const err = document.getElementById('resError');
            err.textContent = '';
            try {
                const v = await api(force ? 'POST' : 'GET', '/resources/' + kind + (force ? '/refresh' : ''));
                if (v.error) err.textContent = v.error;
                const when = v.lastFetch ? new Date(v.lastFetch).toLocaleTimeString() : 'never';
                document.getElementById('resStatus').textContent =
                    v.count + ' items, fetched ' + when + (v.stale ? ' (stale)' : '') + (v.loading ? ' (loading)' : '');
                renderResource(v.items || []);
            } catch (e) {
                err.textContent = e.message;
            }
        }
        function renderResource(items) {
            const cols = columns[kind];
            let html = '<tr>' + cols.map(c => '<th>' + esc(c) + '</th>').join('') + '<th></th></tr>';
            for (const it of items) {
                html += '<tr>' + cols.map(c => '<td>' + esc(c.endsWith('Bytes') ? bytes(it[c] || 0) : it[c]) + '</td>').join('');
                if ((kind === 'ports' || kind === 'processes') && it.pid) {
                    html += '<td><button class="danger" data-pid="' + esc(it.pid) + '">Kill</button></td>';
                } else if (kind === 'tools' && uninstallable.includes(it.source)) {
                    html += '<td><button class="danger" data-source="' + esc(it.source) + '" data-name="' + esc(it.fullName) + '">Uninstall</button></td>';
                } else {
                    html += '<td></td>';
                }
                html += '</tr>';
            }
            if (!items.length) html += '<tr><td class="empty" colspan="' + (cols.length + 1) + '">Nothing here</td></tr>';
            document.getElementById('resTable').innerHTML = html;
        }
        document.getElementById('resTable').onclick = async (e) => {
            const b = e.target.closest('button');
            if (!b) return;
            try {
                if (b.dataset.pid) {
                    if (!confirm('Kill process ' + b.dataset.pid + '?')) return;
                    await api('POST', '/processes/' + b.dataset.pid + '/kill');
                } else {
                    if (!confirm('Uninstall ' + b.dataset.name + '?')) return;
                    await api('POST', '/packages/uninstall', {source: b.dataset.source, name: b.dataset.name});
                }
                loadResource(false);
            } catch (err) {
                document.getElementById('resError').textContent = err.message;
            }
        };
        document.getElementById('refresh').onclick = () => loadResource(true);

        async function diskOp(method, suffix, body) {
            const err = document.getElementById('diskError');
            err.textContent = '';
            try {
                disk = disk && suffix !== null
                    ? await api(method, '/disk/sessions/' + disk.id + suffix, body)
                    : await api('POST', '/disk/sessions/');
                renderDisk();
            } catch (e) {
                err.textContent = e.message;
            }
        }
        function renderDisk() {
            let crumbs = '';
            disk.breadcrumb.forEach((label, i) => {
                if (i) crumbs += '<span class="sep">&gt;</span>';
                crumbs += '<a data-index="' + (i - 1) + '">' + esc(label) + '</a>';
            });
            if (!disk.atRoot) crumbs += ' <button id="up">Up</button>';
            document.getElementById('crumbs').innerHTML = crumbs;
            let html = '<tr><th>Name</th><th>Size</th><th>Items</th></tr>';
            for (const row of disk.rows) {
                html += '<tr class="clickable" data-id="' + esc(row.id) + '" data-label="' + esc(row.category) + '"><td>' +
                    esc(row.category) + '</td><td>' + bytes(row.sizeBytes) + '</td><td>' + esc(row.itemCount) + '</td></tr>';
            }
            if (!disk.rows.length) html += '<tr><td class="empty" colspan="3">Empty</td></tr>';
            document.getElementById('diskTable').innerHTML = html;
        }
        document.getElementById('crumbs').onclick = (e) => {
            if (e.target.id === 'up') return diskOp('POST', '/ascend');
            const a = e.target.closest('a');
            if (a) diskOp('POST', '/jump', {index: Number(a.dataset.index)});
        };
        document.getElementById('diskTable').onclick = (e) => {
            const tr = e.target.closest('tr.clickable');
            if (tr) diskOp('POST', '/descend', {label: tr.dataset.label, id: tr.dataset.id});
        };

        async function loadDirs() {
            const dirs = await api('GET', '/config/dirs');
            document.getElementById('dirs').innerHTML = '<option value="">directory</option>' +
                dirs.map(d => '<option value="' + esc(d.path) + '">' + esc(d.name) + '</option>').join('');
        }
        document.getElementById('dirs').onchange = async (e) => {
            const files = e.target.value ? await api('GET', '/config/files?path=' + encodeURIComponent(e.target.value)) : [];
            document.getElementById('files').innerHTML = '<option value="">file</option>' +
                files.map(f => '<option value="' + esc(f) + '">' + esc(f.split('/').pop()) + '</option>').join('');
        };
        document.getElementById('files').onchange = async (e) => {
            const err = document.getElementById('configError');
            err.textContent = '';
            try {
                doc = e.target.value ? await api('GET', '/config/file?path=' + encodeURIComponent(e.target.value)) : null;
                renderDoc();
            } catch (ex) {
                err.textContent = ex.message;
            }
        };
        function renderDoc() {
            const fields = document.getElementById('fields');
            const raw = document.getElementById('raw');
            fields.innerHTML = '';
            raw.value = doc ? doc.raw : '';
            raw.style.display = doc && !doc.structured ? 'block' : 'none';
            if (!doc) return;
            if (doc.parseError) document.getElementById('configError').textContent = doc.parseError;
            for (const f of doc.fields) {
                const type = f.widget === 'switch' ? 'checkbox' : f.widget === 'number' ? 'number' : 'text';
                fields.insertAdjacentHTML('beforeend', '<div class="field"><label>' + esc(f.path) + '</label><input type="' + type +
                    '" data-path="' + esc(f.path) + '" value="' + esc(f.text) + '"' + (type === 'checkbox' && f.value ? ' checked' : '') + '></div>');
            }
        }
        document.getElementById('saveConfig').onclick = async () => {
            if (!doc) return;
            const err = document.getElementById('configError');
            err.textContent = '';
            let body;
            if (doc.structured) {
                body = {fields: {}};
                document.querySelectorAll('#fields input').forEach(i => {
                    body.fields[i.dataset.path] = i.type === 'checkbox' ? String(i.checked) : i.value;
                });
            } else {
                body = {raw: document.getElementById('raw').value};
            }
            try {
                doc = await api('PUT', '/config/file?path=' + encodeURIComponent(doc.path), body);
                renderDoc();
            } catch (e) {
                err.textContent = e.message;
            }
        };

        async function loadTemplates() {
            const tpls = await api('GET', '/templates');
            document.getElementById('template').innerHTML =
                tpls.map(t => '<option value="' + esc(t.name) + '">' + esc(t.category + ' / ' + t.name) + '</option>').join('');
        }
        document.getElementById('projectForm').onsubmit = async (e) => {
            e.preventDefault();
            const err = document.getElementById('projectError');
            err.textContent = '';
            try {
                const res = await api('POST', '/projects', {
                    template: document.getElementById('template').value,
                    name: document.getElementById('projectName').value,
                    path: document.getElementById('projectPath').value
                });
                document.getElementById('projectOutput').textContent = res.output;
            } catch (ex) {
                err.textContent = ex.message;
            }
        };

        async function loadProxies() {
            const list = await api('GET', '/proxies');
            document.getElementById('proxyTable').innerHTML =
                '<tr><th>tool</th><th>proxy</th><th>registry</th><th>file</th><th></th></tr>' +
                list.map(p => '<tr data-tool="' + esc(p.tool) + '">' +
                    '<td>' + esc(p.tool) + '</td>' +
                    '<td><input class="proxy" placeholder="http://127.0.0.1:7890" value="' + esc(p.proxy) + '"></td>' +
                    '<td>' + (p.supportsRegistry ? '<input class="registry" value="' + esc(p.registry) + '">' : '') + '</td>' +
                    '<td class="muted">' + esc(p.path) + '</td>' +
                    '<td><button class="saveProxy">Save</button></td></tr>').join('');
        }
        document.getElementById('proxyTable').onclick = async (e) => {
            const b = e.target.closest('button.saveProxy');
            if (!b) return;
            const row = b.closest('tr');
            const reg = row.querySelector('.registry');
            const err = document.getElementById('proxyError');
            err.textContent = '';
            try {
                await api('PUT', '/proxies/' + encodeURIComponent(row.dataset.tool), {
                    proxy: row.querySelector('.proxy').value,
                    registry: reg ? reg.value : null
                });
                await loadProxies();
            } catch (ex) {
                err.textContent = ex.message;
            }
        };

        document.getElementById('tabs').onclick = (e) => {
            const b = e.target.closest('button');
            if (!b) return;
            document.querySelectorAll('#tabs button').forEach(x => x.classList.toggle('active', x === b));
            show(b.dataset.tab);
            if (b.dataset.tab === 'res') { kind = b.dataset.kind; loadResource(false); }
            if (b.dataset.tab === 'disk' && !disk) diskOp('POST', null);
            if (b.dataset.tab === 'config') loadDirs().catch(ex => { document.getElementById('configError').textContent = ex.message; });
            if (b.dataset.tab === 'proxies') loadProxies().catch(ex => { document.getElementById('proxyError').textContent = ex.message; });
            if (b.dataset.tab === 'projects') loadTemplates().catch(ex => { document.getElementById('projectError').textContent = ex.message; });
        };
        document.querySelector('#tabs button').click();
        api('GET', '/update').then(u => {
            if (u.outdated) document.getElementById('update').textContent = 'update available: ' + u.latest;
        }).catch(() => {});
    </script>
</body>
</html>`

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Version string
	Kinds   []rescache.Kind
}

func (s *Server) addIndexRoute() {
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTmpl.Execute(w, indexData{Version: s.version, Kinds: rescache.Kinds()}); err != nil {
			s.log.Warn("render index", zap.Error(err))
		}
	})
}
