package markethours

import "strings"

// Session describes one exchange trading session as local wall-clock bounds.
type Session struct {
	Timezone    string
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// usSession is the fallback for unknown symbols.
var usSession = Session{Timezone: "America/New_York", OpenHour: 9, OpenMinute: 30, CloseHour: 16}

var indiaSession = Session{Timezone: "Asia/Kolkata", OpenHour: 9, OpenMinute: 15, CloseHour: 15, CloseMinute: 30}

var londonSession = Session{Timezone: "Europe/London", OpenHour: 8, CloseHour: 16, CloseMinute: 30}

var tokyoSession = Session{Timezone: "Asia/Tokyo", OpenHour: 9, CloseHour: 15}

// sessions maps exchange index symbols to their home session.
var sessions = map[string]Session{
	"^GSPC":  usSession,
	"^DJI":   usSession,
	"^IXIC":  usSession,
	"^RUT":   usSession,
	"^NSEI":  indiaSession,
	"^BSESN": indiaSession,
	"^FTSE":  londonSession,
	"^N225":  tokyoSession,
	"^GDAXI": {Timezone: "Europe/Berlin", OpenHour: 9, CloseHour: 17, CloseMinute: 30},
	"^FCHI":  {Timezone: "Europe/Paris", OpenHour: 9, CloseHour: 17, CloseMinute: 30},
	"^HSI":   {Timezone: "Asia/Hong_Kong", OpenHour: 9, OpenMinute: 30, CloseHour: 16},
	"^AXJO":  {Timezone: "Australia/Sydney", OpenHour: 10, CloseHour: 16},
}

// sessionFor resolves a symbol to its trading session: exact matches first,
// then exchange suffixes, then the default US session.
func sessionFor(symbol string) Session {
	if s, ok := sessions[symbol]; ok {
		return s
	}
	switch {
	case strings.HasSuffix(symbol, ".NS"), strings.HasSuffix(symbol, ".BO"):
		return indiaSession
	case strings.HasSuffix(symbol, ".L"):
		return londonSession
	case strings.HasSuffix(symbol, ".T"):
		return tokyoSession
	}
	return usSession
}
