package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"ms-boxoffice/internal/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopicsExist creates topics that are missing. Existing topics are
// left alone.
func EnsureTopicsExist(brokers []string, topics []string, l *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			l.Debug("KAFKA", fmt.Sprintf("topic %s already exists", topic))
		case err != nil:
			// keep going, the writer can still auto-create
			l.Warn("KAFKA", fmt.Sprintf("could not create topic %s: %v", topic, err))
		default:
			l.Info("KAFKA", fmt.Sprintf("created topic %s", topic))
		}
	}
	return nil
}
