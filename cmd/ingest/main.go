package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iot-oximeter/internal/database"
	"iot-oximeter/internal/mqtt"
	"iot-oximeter/internal/services"
	"iot-oximeter/pkg/config"
)

func main() {
	log.Println("Starting Oximeter Ingest Service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize ClickHouse database
	db, err := database.NewClickHouseDB(
		cfg.ClickHouseAddr,
		cfg.ClickHouseDB,
		cfg.ClickHouseUser,
		cfg.ClickHousePass,
	)
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Initialize MQTT Client ===
	log.Println("Connecting to MQTT broker...")
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Close()

	// === Ingest service ===
	// Acknowledgements go out on the same connection the readings come in on.
	acker := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{QoS: 1})

	ingestConfig := services.DefaultIngestServiceConfig()
	ingestConfig.AckTopic = cfg.MQTTTopicAck
	ingestService := services.NewIngestService(db, acker, ingestConfig)

	// === Initialize MQTT Subscriber ===
	log.Println("Setting up MQTT subscriber...")
	subscriber := mqtt.NewSubscriber(mqttClient, mqtt.SubscriberConfig{
		ReadingTopic: cfg.MQTTTopicReading,
	}, ingestService.ReadingChan)

	if err := subscriber.SubscribeAll(); err != nil {
		log.Fatalf("Failed to subscribe to MQTT topics: %v", err)
	}

	go ingestService.Start(ctx)

	log.Println("=== Oximeter Ingest Service is running ===")
	log.Printf("MQTT Topics:")
	log.Printf("  - Readings:     %s", mqtt.SubscriptionTopic(cfg.MQTTTopicReading))
	log.Printf("  - Confirmation: %s", cfg.MQTTTopicAck)
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Println("Shutdown signal received, stopping services...")
	cancel()

	// Give the service time to finish the reading in hand
	time.Sleep(2 * time.Second)

	log.Println("Shutdown complete. Goodbye!")
}
