package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"kanzey-ticketing/internal/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopicsExist creates the given topics on the cluster controller. Topics
// that already exist are skipped.
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("CREATE", topic, "topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("topic %s already exists", topic))
		default:
			log.Warn("KAFKA", fmt.Sprintf("could not create topic %s: %v", topic, err))
		}
	}
	return nil
}
