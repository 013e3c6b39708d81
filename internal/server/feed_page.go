package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const feedPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Feed · Continuum</title>
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>◉</text></svg>">
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500&display=swap" rel="stylesheet">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b; --bg-subtle: #18181b; --border: #27272a;
            --text: #fafafa; --text-secondary: #a1a1aa; --text-tertiary: #52525b;
            --accent: #22c55e; --red: #ef4444; --amber: #f59e0b; --blue: #3b82f6;
        }
        body {
            font-family: 'Inter', -apple-system, sans-serif;
            background: var(--bg); color: var(--text);
            min-height: 100vh; font-size: 14px;
            -webkit-font-smoothing: antialiased;
        }
        .mono { font-family: 'JetBrains Mono', monospace; }
        .container { max-width: 800px; margin: 0 auto; padding: 0 24px; }
        header {
            border-bottom: 1px solid var(--border); padding: 16px 0;
            position: sticky; top: 0; background: var(--bg); z-index: 100;
        }
        .header-inner { display: flex; justify-content: space-between; align-items: center; }
        .logo { display: flex; align-items: center; gap: 10px; text-decoration: none; color: var(--text); }
        .logo-mark { width: 24px; height: 24px; background: var(--accent); border-radius: 6px; }
        .logo-text { font-weight: 600; font-size: 15px; }
        nav { display: flex; gap: 32px; }
        nav a { color: var(--text-secondary); text-decoration: none; font-size: 13px; transition: color 0.15s; }
        nav a:hover, nav a.active { color: var(--text); }

        .feed-header {
            padding: 48px 0 24px;
            display: flex; justify-content: space-between; align-items: flex-end;
            border-bottom: 1px solid var(--border);
        }
        .feed-title { font-size: 24px; font-weight: 600; margin-bottom: 4px; }
        .feed-desc { color: var(--text-secondary); }
        .live-badge {
            display: flex; align-items: center; gap: 8px;
            background: var(--bg-subtle); border: 1px solid var(--border);
            padding: 8px 14px; border-radius: 20px; font-size: 13px; color: var(--text-secondary);
        }
        .live-dot {
            width: 8px; height: 8px; background: var(--accent); border-radius: 50%;
            animation: pulse 2s ease-in-out infinite;
        }
        .live-dot.down { background: var(--red); animation: none; }
        @keyframes pulse { 0%, 100% { opacity: 1; } 50% { opacity: 0.4; } }

        .ev-list { padding: 0; }
        .ev {
            display: grid; grid-template-columns: 1fr auto;
            gap: 16px; padding: 20px 0; border-bottom: 1px solid var(--border);
            align-items: start;
        }
        .ev.new { animation: slideIn 0.3s ease-out; }
        @keyframes slideIn { from { opacity: 0; transform: translateY(-8px); } to { opacity: 1; transform: translateY(0); } }

        .ev-parties { display: flex; align-items: center; gap: 10px; margin-bottom: 8px; flex-wrap: wrap; }
        .ev-user {
            background: var(--bg-subtle); padding: 6px 12px; border-radius: 6px;
            font-weight: 500; font-size: 14px;
        }
        .ev-label {
            padding: 2px 8px; border-radius: 4px; font-size: 11px;
            text-transform: uppercase; border: 1px solid var(--border);
        }
        .ev-label.pass { color: var(--accent); }
        .ev-label.block { color: var(--red); }
        .ev-label.manual_review { color: var(--amber); }
        .ev-label.skip { color: var(--text-tertiary); }
        .ev-label.enrolled { color: var(--blue); }
        .ev-flags { color: var(--text-secondary); font-size: 13px; }
        .ev-right { text-align: right; }
        .ev-tier { font-size: 18px; font-weight: 600; }
        .ev-score { font-size: 12px; color: var(--text-secondary); margin-top: 4px; }
        .ev-time { font-size: 12px; color: var(--text-tertiary); margin-top: 4px; }

        .empty { text-align: center; padding: 80px 24px; color: var(--text-tertiary); }

        footer { border-top: 1px solid var(--border); padding: 24px 0; margin-top: 48px; text-align: center; color: var(--text-tertiary); font-size: 13px; }
        footer a { color: var(--text-secondary); text-decoration: none; margin: 0 12px; }
    </style>
</head>
<body>
    <header><div class="container header-inner">
        <a href="/" class="logo"><div class="logo-mark"></div><span class="logo-text">Continuum</span></a>
        <nav>
            <a href="/feed" class="active">Feed</a>
            <a href="/metrics">Metrics</a>
        </nav>
    </div></header>
    <main class="container">
        <div class="feed-header">
            <div>
                <h1 class="feed-title">Decision Feed</h1>
                <p class="feed-desc">Authentication decisions as they happen</p>
            </div>
            <div class="live-badge"><span class="live-dot" id="dot"></span> <span id="conn">Live</span></div>
        </div>
        <div class="ev-list" id="feed"><div class="empty">Waiting for decisions...</div></div>
    </main>
    <footer><div class="container"><a href="/v1/stats">Stats API</a><a href="/healthz">Health</a></div></footer>
    <script>
        const MAX_ROWS = 50;
        const timeAgo = ts => {
            const diff = Math.floor((Date.now() - new Date(ts).getTime()) / 1000);
            if (diff < 5) return 'now';
            if (diff < 60) return diff + 's ago';
            if (diff < 3600) return Math.floor(diff/60) + 'm ago';
            return Math.floor(diff/3600) + 'h ago';
        };

        const events = [];
        function render() {
            const el = document.getElementById('feed');
            if (!events.length) {
                el.innerHTML = '<div class="empty">Waiting for decisions...</div>';
                return;
            }
            el.innerHTML = events.map((ev, i) => {
                const d = ev.data || {};
                const label = (ev.type === 'enrollment') ? 'enrolled' : String(d.label || '').toLowerCase();
                const flags = (d.flags || []).join(', ');
                return '<div class="ev'+(i === 0 ? ' new' : '')+'">'+
                    '<div>'+
                        '<div class="ev-parties">'+
                            '<span class="ev-user mono">'+(d.userId || '?')+'</span>'+
                            '<span class="ev-label '+label+'">'+label.replace('_',' ')+'</span>'+
                        '</div>'+
                        (flags ? '<div class="ev-flags">'+flags+'</div>' : '')+
                    '</div>'+
                    '<div class="ev-right">'+
                        '<div class="ev-tier mono">'+(d.tier || '')+'</div>'+
                        (d.score !== undefined ? '<div class="ev-score mono">score '+Number(d.score).toFixed(3)+'</div>' : '')+
                        '<div class="ev-time">'+timeAgo(ev.timestamp)+'</div>'+
                    '</div>'+
                '</div>';
            }).join('');
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/v1/ws');
            ws.onopen = () => {
                document.getElementById('dot').classList.remove('down');
                document.getElementById('conn').textContent = 'Live';
                ws.send(JSON.stringify({allEvents: true}));
            };
            ws.onmessage = msg => {
                try {
                    events.unshift(JSON.parse(msg.data));
                    if (events.length > MAX_ROWS) events.pop();
                    render();
                } catch (e) { /* ignore malformed frames */ }
            };
            ws.onclose = () => {
                document.getElementById('dot').classList.add('down');
                document.getElementById('conn').textContent = 'Reconnecting';
                setTimeout(connect, 2000);
            };
        }

        connect();
        setInterval(render, 10000);
    </script>
</body>
</html>`

func feedPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, feedPageHTML)
}
