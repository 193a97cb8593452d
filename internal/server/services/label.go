package services

import (
	"math/rand"
	"strings"
)

var labelAdjectives = []string{
	"amber", "brave", "calm", "dusty", "eager", "fuzzy", "gentle", "hidden",
	"icy", "jolly", "kind", "lucky", "mellow", "nimble", "quiet", "rapid",
	"silver", "tidy", "vivid", "witty",
}

var labelNouns = []string{
	"badger", "comet", "falcon", "harbor", "lantern", "meadow", "otter",
	"pebble", "quill", "raven", "summit", "thistle", "walrus", "willow",
}

// memorableLabel returns an adjective-adjective-noun phrase. Labels are for
// humans scanning a list and are never used to look anything up.
func memorableLabel() string {
	a := labelAdjectives[rand.Intn(len(labelAdjectives))]
	b := labelAdjectives[rand.Intn(len(labelAdjectives))]
	for b == a {
		b = labelAdjectives[rand.Intn(len(labelAdjectives))]
	}
	n := labelNouns[rand.Intn(len(labelNouns))]
	return strings.Join([]string{a, b, n}, "-")
}
