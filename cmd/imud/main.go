package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imud/internal/ak09916"
	"imud/internal/config"
	"imud/internal/gpio"
	"imud/internal/icm20948"
	"imud/internal/spi"
	"imud/internal/telemetry"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./imud.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus, err := spi.Open(cfg.IMU.SPIDevice, cfg.IMU.SPISpeedHz, cfg.IMU.SPIMode)
	if err != nil {
		log.Fatalf("spi open failed: %v", err)
	}
	defer bus.Close()

	pub, err := telemetry.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}
	defer pub.Close()

	opts := icm20948.Options{SampleRate: cfg.IMU.SampleRateHz}
	if cfg.IMU.DRDYGPIOChip != "" {
		opts.DataReady = gpio.NewDataReadyLine(cfg.IMU.DRDYGPIOChip, cfg.IMU.DRDYGPIOLine)
	}

	dev, err := icm20948.New(bus, pub.Stream(cfg.MQTT.TopicAccel), pub.Stream(cfg.MQTT.TopicGyro), opts)
	if err != nil {
		log.Fatalf("icm20948 init failed: %v", err)
	}

	if cfg.IMU.EnableMag {
		mag, err := ak09916.New(dev, pub.Stream(cfg.MQTT.TopicMag))
		if err != nil {
			log.Fatalf("ak09916 init failed: %v", err)
		}
		dev.AttachMagnetometer(mag)
	}

	log.Printf("imud starting")
	log.Printf("spi=%s speed=%dHz drain=%s mqtt=%s", cfg.IMU.SPIDevice, cfg.IMU.SPISpeedHz, dev.DrainInterval(), cfg.MQTT.Broker)

	go func() {
		if err := dev.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("acquisition stopped: %v", err)
			cancel()
		}
	}()

	status := time.NewTicker(cfg.IMU.StatusInterval)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("imud stopping")
			return
		case <-status.C:
			log.Printf("status:\n%s", dev.Status())
		}
	}
}
