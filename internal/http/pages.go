package http

const callbackPage = `<!DOCTYPE html>
<html>
<head>
    <title>Muze</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
    <p id="status">Signing in...</p>
    <script>
        fetch('/token', { method: 'POST', body: window.location.hash.substring(1) })
            .then(function (resp) {
                if (resp.ok || resp.status === 409) {
                    window.location.replace('/');
                    return;
                }
                document.getElementById('status').innerHTML = 'Login failed. <a href="/login">Try again</a>';
            })
            .catch(function () {
                document.getElementById('status').textContent = 'Login failed.';
            });
    </script>
</body>
</html>`

const playerPage = `<!DOCTYPE html>
<html>
<head>
    <title>Muze</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; background: #121212; color: #eee; }
        .header { color: #1db954; }
        #now-playing img { max-width: 240px; border-radius: 4px; }
        #now-playing a { color: #eee; }
        #controls button { margin: 4px; padding: 10px 16px; border: 0; border-radius: 20px; cursor: pointer; }
        #message { margin: 16px 0; min-height: 1.2em; color: #ffb; }
        #loading { display: none; }
        body.loading #loading { display: block; }
        #say { margin-top: 24px; }
        #say input { width: 60%; padding: 8px; }
    </style>
</head>
<body>
    <h1 class="header">Muze</h1>
    <div id="now-playing"></div>
    <div id="loading">...</div>
    <div id="message"></div>
    <div id="controls"></div>
    <div id="playlist"></div>
    <form id="say">
        <input id="say-text" type="text" placeholder="play something, more like this, add to my playlist">
        <button type="submit">Say</button>
        <button type="button" id="listen">Listen</button>
    </form>
    <script>
        var socket;

        function button(control) {
            var b = document.createElement('button');
            b.textContent = control.title;
            b.onclick = function () { send({ type: 'intent', action: control.id }); };
            return b;
        }

        function render(target, controls) {
            var el = document.getElementById(target);
            el.innerHTML = '';
            controls.forEach(function (c) { el.appendChild(button(c)); });
        }

        function send(msg) {
            if (socket && socket.readyState === WebSocket.OPEN) {
                socket.send(JSON.stringify(msg));
            }
        }

        function handle(event) {
            var p = event.payload;
            switch (event.type) {
            case 'now_playing':
                var el = document.getElementById('now-playing');
                el.innerHTML = '';
                if (p.albumArt) {
                    var img = document.createElement('img');
                    img.src = p.albumArt;
                    el.appendChild(img);
                }
                var link = document.createElement('a');
                link.href = p.link || '#';
                link.target = '_blank';
                link.textContent = p.song + ' - ' + p.artist + ' (' + p.album + ')';
                var line = document.createElement('p');
                line.appendChild(link);
                el.appendChild(line);
                break;
            case 'play_button':
                render('controls', [p]);
                document.getElementById('playlist').innerHTML = '';
                break;
            case 'recommendation_controls':
                render('controls', p);
                break;
            case 'playlist_controls':
                render('playlist', p);
                break;
            case 'message':
                document.getElementById('message').textContent = p.text;
                break;
            case 'state':
                document.body.classList.toggle('loading', p.loading);
                if (p.loading) {
                    document.getElementById('message').textContent = '';
                }
                break;
            }
        }

        function connect() {
            var proto = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
            socket = new WebSocket(proto + window.location.host + '/ws');
            socket.onmessage = function (msg) { handle(JSON.parse(msg.data)); };
            socket.onclose = function () { setTimeout(connect, 2000); };
        }

        document.getElementById('say').onsubmit = function (e) {
            e.preventDefault();
            var input = document.getElementById('say-text');
            if (input.value) {
                send({ type: 'say', text: input.value });
                input.value = '';
            }
        };

        var Recognition = window.SpeechRecognition || window.webkitSpeechRecognition;
        if (Recognition) {
            document.getElementById('listen').onclick = function () {
                var r = new Recognition();
                r.onresult = function (e) { send({ type: 'say', text: e.results[0][0].transcript }); };
                r.start();
            };
        } else {
            document.getElementById('listen').style.display = 'none';
        }

        connect();
    </script>
</body>
</html>`
