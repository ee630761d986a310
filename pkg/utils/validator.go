package utils

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

var topicPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,249}$`)

// ValidateHostPort validates a host:port address such as a Kafka broker
func ValidateHostPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("invalid address %q: missing host", addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid address %q: bad port", addr)
	}
	return nil
}

// ValidateTopicName validates a Kafka topic name
func ValidateTopicName(topic string) error {
	if topic == "." || topic == ".." || !topicPattern.MatchString(topic) {
		return fmt.Errorf("invalid topic name: %q", topic)
	}
	return nil
}
