// Package displayname generates human-friendly, adjective+animal peer names
// for the "node list" CLI renderer, the same style the original daemon used
// for its connection records (kitten/util/names.py's "bad_ox" /
// "disillusioned_eastern-diamondback-rattlesnake" pairing). Unlike the
// original, names here are derived deterministically from the peer's
// address rather than stored: a peer's name is stable across calls without
// needing a dedicated registry field.
package displayname

import "hash/fnv"

var adjectives = []string{
	"bad", "swift", "quiet", "brave", "lucky", "clever", "silent", "eager",
	"gentle", "fierce", "nimble", "bold", "calm", "sly", "sharp", "wild",
	"sleepy", "curious", "loyal", "restless",
}

var animals = []string{
	"ox", "fox", "wolf", "hawk", "otter", "lynx", "heron", "badger",
	"raven", "moose", "gecko", "falcon", "marten", "jackal", "bison",
	"ferret", "crane", "viper", "osprey", "weasel",
}

// For derives a stable "adjective_animal" name from address, so the same
// peer always renders the same name without persisting one.
func For(address string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(address))
	sum := h.Sum32()

	adj := adjectives[int(sum)%len(adjectives)]
	animal := animals[int(sum/uint32(len(adjectives)))%len(animals)]
	return adj + "_" + animal
}
