package video

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sendrec/ivplayer/internal/controls"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/interaction"
)

type embedInteraction struct {
	ID          int     `json:"id"`
	From        float64 `json:"from"`
	To          float64 `json:"to"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PauseOnShow bool    `json:"pauseOnShow"`
	ClassName   string  `json:"className"`
	Label       string  `json:"label"`
}

type embedData struct {
	Duration     float64            `json:"duration"`
	Volume       bool               `json:"volume"`
	L10n         controls.L10n      `json:"l10n"`
	Interactions []embedInteraction `json:"interactions"`
}

type embedPageData struct {
	Title       string
	VideoURL    string
	ContentType string
	Nonce       string
	Volume      bool
	L10n        controls.L10n
	Data        embedData
}

type notFoundPageData struct {
	Nonce string
}

func newEmbedData(watch *Watch, userAgent string) embedData {
	data := embedData{
		Duration:     watch.Duration,
		Volume:       controls.VolumeSupported(userAgent),
		L10n:         controls.DefaultL10n(),
		Interactions: make([]embedInteraction, 0, len(watch.Interactions)),
	}
	for _, d := range watch.Interactions {
		label := d.Label
		if label == "" {
			label = interaction.MachineName(d.Library)
		}
		data.Interactions = append(data.Interactions, embedInteraction{
			ID:          d.ID,
			From:        d.From,
			To:          d.To,
			X:           d.Position.X,
			Y:           d.Position.Y,
			PauseOnShow: d.PauseOnShow,
			ClassName:   interaction.ClassName(d.Library),
			Label:       label,
		})
	}
	return data
}

var embedPageTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        html, body { width: 100%; height: 100%; overflow: hidden; background: #000; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; }
        .player { position: relative; width: 100%; height: 100%; display: flex; flex-direction: column; }
        .stage { position: relative; flex: 1; min-height: 0; }
        video { width: 100%; height: 100%; object-fit: contain; }
        .overlay { position: absolute; inset: 0; pointer-events: none; }
        .interaction { position: absolute; pointer-events: auto; cursor: pointer; padding: 6px 10px; border-radius: 4px; background: rgba(15, 23, 42, 0.85); color: #e2e8f0; font-size: 13px; }
        .dialog { position: absolute; inset: 10%; display: none; background: #1e293b; color: #e2e8f0; border-radius: 8px; padding: 16px; }
        .dialog.visible { display: block; }
        .dialog .close { float: right; cursor: pointer; background: none; border: none; color: #94a3b8; font-size: 18px; }
        .controls { display: flex; align-items: center; gap: 8px; padding: 6px 10px; background: #1e293b; color: #e2e8f0; font-size: 12px; }
        .controls button { background: none; border: none; color: inherit; cursor: pointer; }
        .controls input[type=range] { flex: 1; }
    </style>
</head>
<body>
    <div class="player">
        <div class="stage">
            <video playsinline webkit-playsinline crossorigin="anonymous" preload="metadata">
                <source src="{{.VideoURL}}" type="{{.ContentType}}">
            </video>
            <div class="overlay" id="overlay"></div>
            <div class="dialog" id="dialog"><button class="close" id="dialog-close">&times;</button><div id="dialog-body"></div></div>
        </div>
        <div class="controls">
            <button class="play" id="play" title="{{.L10n.Play}}">&#9654;</button>
            <span id="current">0:00</span>
            <input type="range" id="slider" min="0" max="{{.Data.Duration}}" step="1" value="0">
            <span id="total">0:00</span>
            {{if .Volume}}<button class="mute" id="mute" title="{{.L10n.Mute}}">&#128266;</button>{{end}}
            <button class="enterfullscreen" id="fullscreen" title="{{.L10n.Fullscreen}}">&#9974;</button>
        </div>
    </div>
    <script type="application/json" id="ivp-data">{{.Data}}</script>
    <script nonce="{{.Nonce}}">
        (function() {
            var data = JSON.parse(document.getElementById('ivp-data').textContent);
            var video = document.querySelector('video');
            var overlay = document.getElementById('overlay');
            var dialog = document.getElementById('dialog');
            var mounted = {};
            var last = -1;
            function humanize(s) {
                s = Math.floor(s);
                var h = Math.floor(s / 3600), m = Math.floor((s % 3600) / 60), sec = s % 60;
                var mm = h > 0 && m < 10 ? '0' + m : '' + m;
                return (h > 0 ? h + ':' : '') + mm + ':' + (sec < 10 ? '0' : '') + sec;
            }
            function open(def) {
                video.pause();
                document.getElementById('dialog-body').textContent = def.label;
                dialog.className = 'dialog visible dialog-interaction ' + def.className;
            }
            function evaluate(second) {
                data.interactions.forEach(function(def) {
                    var inside = def.from <= second && second <= def.to;
                    if (inside && !mounted[def.id]) {
                        var el = document.createElement('div');
                        el.className = 'interaction ' + def.className;
                        el.style.left = def.x + '%';
                        el.style.top = def.y + '%';
                        el.textContent = def.label;
                        el.addEventListener('click', function() { open(def); });
                        overlay.appendChild(el);
                        mounted[def.id] = el;
                        if (def.pauseOnShow && !video.paused) { video.pause(); }
                    } else if (!inside && mounted[def.id]) {
                        mounted[def.id].remove();
                        delete mounted[def.id];
                    }
                });
                last = second;
            }
            video.addEventListener('loadedmetadata', function() {
                document.getElementById('total').textContent = humanize(video.duration || data.duration);
                evaluate(0);
            });
            video.addEventListener('timeupdate', function() {
                var second = Math.floor(video.currentTime);
                document.getElementById('current').textContent = humanize(video.currentTime);
                document.getElementById('slider').value = second;
                if (second !== last) { evaluate(second); }
            });
            video.addEventListener('seeked', function() { evaluate(Math.floor(video.currentTime)); });
            video.addEventListener('play', function() { document.getElementById('play').title = data.l10n.pause; });
            video.addEventListener('pause', function() { document.getElementById('play').title = data.l10n.play; });
            document.getElementById('play').addEventListener('click', function() {
                if (video.paused) { video.play().catch(function() {}); } else { video.pause(); }
            });
            document.getElementById('slider').addEventListener('change', function(e) {
                video.currentTime = Number(e.target.value);
            });
            document.getElementById('dialog-close').addEventListener('click', function() {
                dialog.className = 'dialog';
                video.play().catch(function() {});
            });
            var mute = document.getElementById('mute');
            if (mute) {
                mute.addEventListener('click', function() {
                    video.muted = !video.muted;
                    mute.title = video.muted ? data.l10n.unmute : data.l10n.mute;
                });
            }
            document.getElementById('fullscreen').addEventListener('click', function() {
                var player = document.querySelector('.player');
                if (document.fullscreenElement) { document.exitFullscreen(); }
                else if (player.requestFullscreen) { player.requestFullscreen(); }
            });
        })();
    </script>
</body>
</html>`))

var notFoundPageTemplate = template.Must(template.New("not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Video not found</title>
    <style nonce="{{.Nonce}}">
        body { background: #0f172a; color: #e2e8f0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
    </style>
</head>
<body>
    <p>This video is not available.</p>
</body>
</html>`))

// EmbedPage renders a self-contained interactive player for iframes.
func (h *Handler) EmbedPage(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")
	nonce := httputil.NonceFromContext(r.Context())

	watch, err := h.Lookup(r.Context(), shareToken)
	if err != nil {
		status := http.StatusNotFound
		if !errors.Is(err, ErrNotFound) {
			slog.Error("video: embed lookup failed", "share_token", shareToken, "error", err)
			status = http.StatusInternalServerError
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := notFoundPageTemplate.Execute(w, notFoundPageData{Nonce: nonce}); err != nil {
			slog.Error("video: render not found page", "error", err)
		}
		return
	}

	videoURL, err := h.storage.PlaybackURL(r.Context(), watch.FileKey, playbackURLExpiry)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := newEmbedData(watch, r.UserAgent())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := embedPageTemplate.Execute(w, embedPageData{
		Title:       watch.Title,
		VideoURL:    videoURL,
		ContentType: watch.ContentType,
		Nonce:       nonce,
		Volume:      data.Volume,
		L10n:        data.L10n,
		Data:        data,
	}); err != nil {
		slog.Error("video: render embed page", "error", err)
	}
}
