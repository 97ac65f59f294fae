package conf

import "github.com/spf13/viper"

// setDefaultConfig sets the default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "automix")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "automix.log")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8090")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("analysis.samplerate", 44100)
	viper.SetDefault("analysis.ffmpegpath", "ffmpeg")
	viper.SetDefault("analysis.ffprobepath", "ffprobe")
	viper.SetDefault("analysis.decodetimeout", 60)
	viper.SetDefault("analysis.cacheanalysis", true)
	viper.SetDefault("analysis.version", "v1")
	viper.SetDefault("analysis.maxtracklength", 3600)

	viper.SetDefault("planner.targetbpmdefault", 120.0)

	viper.SetDefault("render.bitrate", "192k")
	viper.SetDefault("render.format", "mp3")
	viper.SetDefault("render.rendertimeout", 600)

	viper.SetDefault("queue.concurrency", 4)
	viper.SetDefault("queue.maxqueued", 256)
	viper.SetDefault("queue.shutdownwait", 30)

	viper.SetDefault("stems.engines", []string{"remote", "bandsplit"})
	viper.SetDefault("stems.remoteurl", "")
	viper.SetDefault("stems.probetimeout", 3)
	viper.SetDefault("stems.separatetimeout", 300)

	viper.SetDefault("objectstore.driver", "disk")
	viper.SetDefault("objectstore.disk.root", "objects/")
	viper.SetDefault("objectstore.s3.bucket", "")
	viper.SetDefault("objectstore.s3.region", "us-east-1")
	viper.SetDefault("objectstore.s3.endpoint", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "automix.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "automix/status")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
