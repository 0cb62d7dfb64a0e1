package mqtt

import "fmt"

// TopicPrefix is the root of every topic this service publishes.
const TopicPrefix = "hydro"

// Topics builds the topics for one site.
//
//	topics := mqtt.Topics{Site: "hydro-001"}
//	topics.Summary() // "hydro/hydro-001/summary"
type Topics struct {
	Site string
}

// Summary returns the topic that carries each persisted Summary Record.
//
// Example: hydro/hydro-001/summary
func (t Topics) Summary() string {
	return fmt.Sprintf("%s/%s/summary", TopicPrefix, t.Site)
}

// Status returns the retained online/offline topic, also used for the LWT.
//
// Example: hydro/hydro-001/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, t.Site)
}

// All returns a wildcard matching every topic of the site.
//
// Example: hydro/hydro-001/#
func (t Topics) All() string {
	return fmt.Sprintf("%s/%s/#", TopicPrefix, t.Site)
}
