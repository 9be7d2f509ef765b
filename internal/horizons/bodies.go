package horizons

// BodyRef names a body and its Horizons command id.
type BodyRef struct {
	Name string
	ID   string
}

// Planets are the bodies propagated by the simulator, in column order.
var Planets = []BodyRef{
	{"Mercury", "199"},
	{"Venus", "299"},
	{"Earth", "399"},
	{"Mars", "499"},
	{"Jupiter", "599"},
	{"Saturn", "699"},
	{"Uranus", "799"},
	{"Neptune", "899"},
	{"Pluto", "999"},
}

// LoggerBodies are the bodies sampled by the daily ephemeris logger.
// Earth is replaced by the Sun and the Moon since vectors are geocentric.
var LoggerBodies = []BodyRef{
	{"Sun", "10"},
	{"Moon", "301"},
	{"Mercury", "199"},
	{"Venus", "299"},
	{"Mars", "499"},
	{"Jupiter", "599"},
	{"Saturn", "699"},
	{"Uranus", "799"},
	{"Neptune", "899"},
	{"Pluto", "999"},
}

// Lookup returns the planet with the given name or id.
func Lookup(nameOrID string) (BodyRef, bool) {
	for _, list := range [][]BodyRef{Planets, LoggerBodies} {
		for _, b := range list {
			if b.Name == nameOrID || b.ID == nameOrID {
				return b, true
			}
		}
	}
	return BodyRef{}, false
}
