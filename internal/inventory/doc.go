// Package inventory turns the nested country → club → server tree into the
// flat, ordered list of probe targets for one scan.
//
// Each club's server list comes from the central configuration store when
// it carries an entry for the club's key (see ClubKey), and from the club's
// static defaults otherwise. A store that cannot be read degrades every club
// to its defaults; it never aborts the flatten.
package inventory
