package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iot-oximeter/internal/clock"
	"iot-oximeter/internal/delivery"
	"iot-oximeter/internal/mqtt"
	"iot-oximeter/internal/sensor"
	"iot-oximeter/internal/services"
	"iot-oximeter/internal/session"
	"iot-oximeter/internal/storage"
	"iot-oximeter/pkg/config"
)

func main() {
	log.Println("Starting Oximeter Node...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sessionConfig, err := cfg.Session()
	if err != nil {
		log.Fatalf("Invalid session configuration: %v", err)
	}

	clk := clock.Real()

	// === Sensor ===
	// The node cannot do anything useful without a sensor; fail hard.
	sim := sensor.NewSim(cfg.Sim(), clk.Now)
	if err := sim.Init(); err != nil {
		log.Fatalf("Failed to initialize sensor: %v", err)
	}
	sampler := sensor.NewSampler(sim, cfg.FingerThreshold)
	log.Printf("Sensor ready (finger threshold=%.0f)", sampler.Threshold())

	// === Durable buffer ===
	region, err := storage.OpenFileRegion(cfg.StorePath, storage.RequiredSize(cfg.StoreMaxRecords))
	if err != nil {
		log.Fatalf("Failed to open record region: %v", err)
	}

	store, err := storage.NewRecordStore(region, cfg.StoreMaxRecords, clk.Now)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	log.Printf("Record store %s: %d/%d buffered", cfg.StorePath, store.Count(), store.Capacity())

	// === MQTT ===
	// Connect-retry: a broker that is down at boot just means we start offline.
	log.Println("Connecting to MQTT broker...")
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:        cfg.MQTTBroker,
		ClientID:      cfg.MQTTClientID,
		Username:      cfg.MQTTUsername,
		Password:      cfg.MQTTPassword,
		ConnectRetry:  true,
		RetryInterval: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Close()

	publisher := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{QoS: 1})

	// === Delivery + session ===
	controller := delivery.NewController(cfg.Delivery(), publisher, store, clk)

	machine, err := session.New(sessionConfig, sampler, controller, mqttClient, session.LogIndicator{}, clk)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	confirmations := mqtt.NewConfirmationSubscriber(mqttClient, cfg.AckTopic(), machine.Confirm)
	if err := confirmations.Subscribe(); err != nil {
		log.Fatalf("Failed to subscribe to confirmations: %v", err)
	}

	nodeService := services.NewNodeService(services.NodeServiceConfig{
		LoopInterval:   cfg.LoopInterval,
		StatusInterval: cfg.StatusInterval,
	}, machine, controller, mqttClient, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		nodeService.Start(ctx)
		close(done)
	}()

	// === Log startup info ===
	log.Printf("=== Oximeter Node %s is running ===", cfg.DeviceID)
	log.Printf("Sampling mode: %s, interval: %v, window: %v (discard %v)",
		sessionConfig.Mode, sessionConfig.MeasurementInterval, sessionConfig.SampleWindow, sessionConfig.DiscardWindow)
	log.Printf("MQTT Topics:")
	log.Printf("  - Readings:     %s", cfg.ReadingTopic())
	log.Printf("  - Confirmation: %s", cfg.AckTopic())
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Println("Shutdown signal received, stopping node...")
	cancel()

	// The loop may be mid-Append or mid-replay; the region stays open until
	// it has returned.
	if waitStopped(done, 5*time.Second) {
		if err := region.Close(); err != nil {
			log.Printf("Failed to close record region: %v", err)
		}
	} else {
		log.Println("Control loop did not stop in time, leaving record region open")
	}

	log.Println("Shutdown complete. Goodbye!")
}
