package models

// GameflipCategories maps display names to marketplace category codes.
var GameflipCategories = map[string]string{
	"Video Games":            "CONSOLE_VIDEO_GAMES",
	"In-Game Items":          "DIGITAL_INGAME",
	"Gift Cards":             "GIFTCARD",
	"Video Game Hardware":    "VIDEO_GAME_HARDWARE",
	"Video Game Accessories": "VIDEO_GAME_ACCESSORIES",
	"Toys & Games":           "TOYS_AND_GAMES",
	"Video & DVD":            "VIDEO_DVD",
	"Unknown":                "UNKNOWN",
}

// GameflipPlatforms maps short names to marketplace platform codes.
// PC listings use "unknown".
var GameflipPlatforms = map[string]string{
	"XBOX":      "xbox",
	"X360":      "xbox_360",
	"XONE":      "xbox_one",
	"PS4":       "playstation_4",
	"PS5":       "playstation_5",
	"N64":       "nintendo_64",
	"NGAMECUBE": "nintendo_gamecube",
	"NWII":      "nintendo_wii",
	"NWIIU":     "nintendo_wiiu",
	"NSWITCH":   "nintendo_switch",
	"NDS":       "nintendo_ds",
	"NDSI":      "nintendo_dsi",
	"N3DS":      "nintendo_3ds",
	"STEAM":     "steam",
	"MOBILE":    "mobile",
	"XLIVE":     "xbox_live",
	"PSN":       "playstation_network",
	"UNKNOWN":   "unknown",
}

// GameflipUPCs lists well known product codes for popular games.
var GameflipUPCs = map[string]string{
	"CSGO":                   "094922417596",
	"FORTNITE":               "GFFORTNITE",
	"FALLOUT76_PC":           "GFPCFLLOUT76",
	"FALLOUT76_PS4":          "GFPSFLLOUT76",
	"FALLOUT76_XONE":         "GFXOFLLOUT76",
	"POKEMON_SWORD_SHIELD":   "045496596972",
	"POKEMON_LETS_GO":        "045496593940",
	"POKEMON_SUN_MOON":       "GFPOKSUNMOON",
	"GTA5_PC":                "710425414534",
	"GTA5_PS4":               "710425474521",
	"GTA5_XONE":              "710425494512",
	"RL_ALL":                 "023171037943,812872018928,812872018935,GF00RLSWITCH",
	"RL_STEAM":               "023171037943",
	"RL_PS4":                 "812872018928",
	"RL_XONE":                "812872018935",
	"RL_SWITCH":              "GF00RLSWITCH",
	"ROBLOX":                 "GF0000ROBLOX",
	"ELDEN_RING_PC":          "GF000ERINGPC",
	"ELDEN_RING_PS4":         "GF000ERINGPS",
	"ELDEN_RING_XONE":        "GF000ERINGXS",
	"POKEMON_LEGENDS_ARCEUS": "045496598044",
	"PUBG":                   "000000578080",
}

func isKnownValue(m map[string]string, v string) bool {
	for _, code := range m {
		if code == v {
			return true
		}
	}
	return false
}

// IsGameflipCategory reports whether v is a marketplace category code.
func IsGameflipCategory(v string) bool { return isKnownValue(GameflipCategories, v) }

// IsGameflipPlatform reports whether v is a marketplace platform code.
func IsGameflipPlatform(v string) bool { return isKnownValue(GameflipPlatforms, v) }

// IsGameflipUPC reports whether v is one of the supported product codes.
func IsGameflipUPC(v string) bool { return isKnownValue(GameflipUPCs, v) }
