package commsutil

import "fmt"

// SubjectMessageReceived is the global subject for accepted messages.
const SubjectMessageReceived = "gateway.message.received"

// BuildTransportSubject builds the granular message-received subject for a
// transport ("http" or "udp").
func BuildTransportSubject(transport string) string {
	return fmt.Sprintf("%s.%s", SubjectMessageReceived, transport)
}
