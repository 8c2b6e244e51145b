package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IMU  IMUConfig  `yaml:"imu"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

type IMUConfig struct {
	SPIDevice  string `yaml:"spi_device"`
	SPISpeedHz uint32 `yaml:"spi_speed_hz"`
	SPIMode    uint8  `yaml:"spi_mode"`

	SampleRateHz int `yaml:"sample_rate_hz"`

	// Data-ready GPIO. Leave the chip empty to poll the FIFO instead.
	DRDYGPIOChip string `yaml:"drdy_gpio_chip"`
	DRDYGPIOLine int    `yaml:"drdy_gpio_line"`

	EnableMag bool `yaml:"enable_mag"`

	StatusInterval time.Duration `yaml:"status_interval"`
}

type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	TopicAccel string `yaml:"topic_accel"`
	TopicGyro  string `yaml:"topic_gyro"`
	TopicMag   string `yaml:"topic_mag"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.IMU.SPIDevice == "" {
		return Config{}, fmt.Errorf("imu.spi_device is required")
	}
	if cfg.IMU.SPISpeedHz == 0 {
		// The ICM-20948 tops out at 7 MHz for register and FIFO traffic.
		cfg.IMU.SPISpeedHz = 7_000_000
	}
	if cfg.IMU.SPIMode == 0 {
		cfg.IMU.SPIMode = 3
	}
	if cfg.IMU.SPIMode > 3 {
		return Config{}, fmt.Errorf("imu.spi_mode must be 0-3")
	}
	if cfg.IMU.SampleRateHz < 0 {
		return Config{}, fmt.Errorf("imu.sample_rate_hz must be >= 0")
	}
	if cfg.IMU.DRDYGPIOChip != "" && cfg.IMU.DRDYGPIOLine < 0 {
		return Config{}, fmt.Errorf("imu.drdy_gpio_line must be >= 0")
	}
	if cfg.IMU.StatusInterval <= 0 {
		cfg.IMU.StatusInterval = 30 * time.Second
	}

	if cfg.MQTT.Broker == "" {
		return Config{}, fmt.Errorf("mqtt.broker is required")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "imud"
	}
	if cfg.MQTT.TopicAccel == "" {
		cfg.MQTT.TopicAccel = "imud/accel"
	}
	if cfg.MQTT.TopicGyro == "" {
		cfg.MQTT.TopicGyro = "imud/gyro"
	}
	if cfg.MQTT.TopicMag == "" {
		cfg.MQTT.TopicMag = "imud/mag"
	}

	return cfg, nil
}
