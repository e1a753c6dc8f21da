// Package symbols translates canonical BASE/QUOTE pairs to each venue's
// native identifiers for the websocket and REST surfaces.
package symbols

import "TickFeed/internal/domain/models"

type venueSymbol struct {
	ws   string
	rest string
}

var table = map[models.Venue]map[models.Symbol]venueSymbol{
	models.VenueBinance: {
		models.BTCUSDT: {ws: "btcusdt", rest: "BTCUSDT"},
	},
	models.VenueOKX: {
		models.BTCUSDT: {ws: "BTC-USDT", rest: "BTC-USDT"},
	},
	models.VenueBitget: {
		models.BTCUSDT: {ws: "BTCUSDT", rest: "BTCUSDT"},
	},
	models.VenueCoinbase: {
		models.BTCUSD: {ws: "BTC-USD", rest: "BTC-USD"},
	},
	models.VenueBitstamp: {
		models.BTCUSD: {ws: "btcusd", rest: "btcusd"},
	},
	models.VenueKraken: {
		models.BTCUSD: {ws: "XBT/USD", rest: "XXBTZUSD"},
		models.BTCEUR: {ws: "XBT/EUR", rest: "XXBTZEUR"},
	},
	models.VenueBitvavo: {
		models.BTCEUR: {ws: "BTC-EUR", rest: "BTC-EUR"},
	},
}

// WS returns the venue's websocket subscription symbol for a canonical
// pair. ok is false when the venue does not list the pair.
func WS(venue models.Venue, sym models.Symbol) (string, bool) {
	vs, ok := table[venue][sym]
	return vs.ws, ok
}

// REST returns the venue's REST symbol for a canonical pair.
func REST(venue models.Venue, sym models.Symbol) (string, bool) {
	vs, ok := table[venue][sym]
	return vs.rest, ok
}

// VenuesFor returns the venues streaming a canonical pair, in backfill
// preference order.
func VenuesFor(sym models.Symbol) []models.Venue {
	switch sym {
	case models.BTCUSDT:
		return []models.Venue{models.VenueBinance, models.VenueOKX, models.VenueBitget}
	case models.BTCUSD:
		return []models.Venue{models.VenueCoinbase, models.VenueBitstamp, models.VenueKraken}
	case models.BTCEUR:
		return []models.Venue{models.VenueKraken, models.VenueBitvavo}
	default:
		return nil
	}
}
