package main

import (
	"sort"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
)

// DocModel holds the device database grouped for page generation.
type DocModel struct {
	Descriptions []*devicedb.Description // match order
	Drivers      []string                // sorted
	ByDriver     map[string][]*devicedb.Description
}

// BuildDocModel groups the descriptions by driver. Descriptions keep
// their database order within each group, which is the order the
// registry matches them in.
func BuildDocModel(descs []*devicedb.Description) *DocModel {
	byDriver := make(map[string][]*devicedb.Description)
	for _, desc := range descs {
		byDriver[desc.Driver] = append(byDriver[desc.Driver], desc)
	}

	drivers := make([]string, 0, len(byDriver))
	for name := range byDriver {
		drivers = append(drivers, name)
	}
	sort.Strings(drivers)

	return &DocModel{
		Descriptions: descs,
		Drivers:      drivers,
		ByDriver:     byDriver,
	}
}
