package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Error messages
	"error.play_failed":                      "Ha ds Lied nid chönne abspile, probier's speter nomau",
	"error.recommendations.empty":            "Ha kei Vorschläg gfunde :(",
	"error.recommendations.no_current_track": "Sorry, mir chunnt grad nüt i Sinn",
	"error.channel.unavailable":              "Dr Musig-Server isch grad nid erreichbar, probier's speter nomau",
	"error.device.connect_failed":            "Ha mi nid chönne mit em Player verbinde, probier's speter nomau",
	"error.device.failed":                    "Dr Player geit nümm, lad d Site bitte nöi",
	"error.login_required":                   "Bitte mäud di zersch bi Spotify a",
	"error.playlist.current_track":           "Ha nid chönne useflinde weles Lied grad louft",
	"error.playlist.add_failed":              "Ha ds Lied nid chönne zur Playliste hinzuefüege :(",
	"error.flood":                            "Hoppla, nid so gleitig! Probier's i re Minute nomau",
	"error.not_understood":                   "Sorry, das ha-n-i nid verstande",

	// Success messages
	"success.playlist.added": "%s isch jitz i dr Playliste!",
	"success.duplicate":      "Isch scho i dr Playliste.",

	// Button texts
	"button.play":         "Spiu öppis!",
	"button.similar":      "Meh vo däm",
	"button.moreElectric": "Meh elektrisch!",
	"button.moreAcoustic": "Nei, meh akustisch",
	"button.moreObscure":  "Eher öppis Unbekannts",
	"button.morePopular":  "Bitte meh Mainstream",
	"button.happier":      "Mach mau fröhlech",
	"button.sadder":       "Mach's truurig :(",
	"button.lessDancey":   "I tanze nid",
	"button.moreDancey":   "I wott derzue tanze!",
	"button.random":       "Eifach irgendöppis!",
	"button.addSong":      "Zur Playliste",
}
