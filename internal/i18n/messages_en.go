package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.play_failed":                      "Couldn't play song, please try again later",
	"error.recommendations.empty":            "Could not get recommendations :(",
	"error.recommendations.no_current_track": "Sorry, I can't think of anything right now",
	"error.channel.unavailable":              "I can't reach the music server right now, please try again later",
	"error.device.connect_failed":            "Couldn't connect to the player, please try again later",
	"error.device.failed":                    "The player stopped working, please reload the page",
	"error.login_required":                   "Please log in to Spotify first",
	"error.playlist.current_track":           "Couldn't tell which song is playing, please try again later",
	"error.playlist.add_failed":              "Couldn't add the song to the playlist :(",
	"error.flood":                            "Whoa, slow down! Try again in a minute",
	"error.not_understood":                   "Sorry, I didn't catch that",

	// Success messages
	"success.playlist.added": "Added %s to the playlist!",
	"success.duplicate":      "Already in playlist.",

	// Button texts
	"button.play":         "Play something!",
	"button.similar":      "More like this",
	"button.moreElectric": "More electric!",
	"button.moreAcoustic": "No, more acoustic",
	"button.moreObscure":  "Actually, more obscure",
	"button.morePopular":  "More mainstream please",
	"button.happier":      "Damn, cheer up",
	"button.sadder":       "Make it sad :(",
	"button.lessDancey":   "I don't dance",
	"button.moreDancey":   "I wanna dance to it!",
	"button.random":       "Just random!",
	"button.addSong":      "Add to playlist",
}
