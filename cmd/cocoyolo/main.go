// Converts a COCO 1.0 dataset (e.g. exported from CVAT) to the YOLOv8 segmentation format.
package main

import (
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sensorable/cocoyolo"
)

// envPrefix prefixes the environment variables that override configuration keys.
const envPrefix = "COCOYOLO"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "cocoyolo",
		Short: "Convert a COCO dataset to the YOLOv8 segmentation format",
		Long: "Reads <coco_dataset>/annotations/*.json and <coco_dataset>/images and writes\n" +
			"<yolo_dataset>/<partition>/{images,labels} and <yolo_dataset>/data.yaml.\n\n" +
			"Every option can also be set in the --config file or through " + envPrefix + "_<OPTION>.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				setupLogging(false)
				log.Error().Err(err).Msg("Invalid configuration")
				return err
			}
			setupLogging(cfg.PrintInfo)

			return run(cfg)
		},
	}

	def := cocoyolo.DefaultConfig()
	flags := cmd.Flags()
	flags.String("config", "", "The `path` to a YAML configuration file")
	flags.String("coco_dataset", def.COCODataset,
		"Folder with the COCO 1.0 dataset (images/ and annotations/)")
	flags.String("yolo_dataset", def.YOLODataset, "Folder for the resulting YOLOv8 dataset")
	flags.Bool("print_info", def.PrintInfo, "Log every processed file and image")
	flags.Bool("autosplit", def.Autosplit,
		"Split randomly into train/validation instead of using the annotation file names")
	flags.Float64("percent_val", def.PercentVal, "Percentage of images for validation with --autosplit")
	flags.String("lang", string(def.Lang), "Language of console messages {en, ru}")
	flags.Int64("seed", def.Seed, "Random seed for --autosplit (0 uses the clock)")
	flags.String("multipolygon", string(def.MultiPolygon),
		"Handling of objects made of several polygons {reject, largest}")
	flags.Int("image_max_side", def.ImageMaxSide,
		"Downsample images whose longer side exceeds this many `pixels` (0 copies images unchanged)")
	flags.Int("jpeg_quality", def.JPEGQuality, "The quality for re-encoded JPEG images [1, 100]")
	flags.Bool("verify_dims", def.VerifyDims, "Warn when an image size differs from its annotation")
	flags.Bool("tfrecord", def.TFRecord, "Also write <partition>.tfrecord files")
	flags.Int("workers", def.Workers, "Number of images written concurrently")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return cmd
}

// loadConfig merges the config file, the environment and the flags into a validated Config.
func loadConfig(v *viper.Viper) (cocoyolo.Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cocoyolo.Config{}, errors.Wrapf(err, "failed to read the config file %q", path)
		}
	}

	cfg := cocoyolo.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cocoyolo.Config{}, errors.Wrap(err, "failed to decode the configuration")
	}
	if err := cfg.Validate(); err != nil {
		return cocoyolo.Config{}, err
	}
	return cfg, nil
}

// setupLogging configures the global logger for console output.
func setupLogging(verbose bool) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func run(cfg cocoyolo.Config) error {
	summary, err := cocoyolo.Convert(afero.NewOsFs(), cfg)
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		if hint := cfg.Lang.Hint(err); hint != "" {
			log.Info().Msg(hint)
		}
		return err
	}

	partitions := make([]cocoyolo.Partition, 0, len(summary.Partitions))
	for p := range summary.Partitions {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	event := log.Info().
		Int("annotation_files", summary.AnnotationFiles).
		Int("images", summary.Records).
		Int("objects", summary.Instances).
		Int("classes", len(summary.Classes)).
		Int("oriented_boxes", summary.OrientedBoxes)
	for _, p := range partitions {
		event = event.Int(p.String(), summary.Partitions[p])
	}
	event.Msg("Total number of converted images")

	return nil
}
