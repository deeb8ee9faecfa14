package config

import (
	"context"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"quantfeed.com/pkg/logger"
)

// LoadAndWatch reads config/{service}.yaml (or ./{service}.yaml) into out,
// which must be a pointer to a struct, and keeps watching the file.
//
// out is written once. Every later change is decoded into a fresh value of
// the same type and handed to onChange, so readers of out never race with
// a reload.
//
// Environment variables override file keys, e.g. FEED_SERVICE_FEED_MODE
// overrides feed.mode for service "feed-service".
func LoadAndWatch(service string, out interface{}, onChange ...func(interface{})) (*viper.Viper, error) {
	v := newViper(service)
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := load(v, service, out); err != nil {
		return nil, err
	}
	watch(v, service, reflect.TypeOf(out).Elem(), onChange)
	return v, nil
}

// LoadFile reads one explicit file into out without watching it.
func LoadFile(service, path string, out interface{}) (*viper.Viper, error) {
	v := newViper(service)
	v.SetConfigFile(path)
	if err := load(v, service, out); err != nil {
		return nil, err
	}
	return v, nil
}

func newViper(service string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(service, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper, service string, out interface{}) error {
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	if err := v.Unmarshal(out); err != nil {
		return err
	}
	logger.Info(context.Background(), "config loaded", zap.String("service", service), zap.String("file", v.ConfigFileUsed()))
	return nil
}

func watch(v *viper.Viper, service string, typ reflect.Type, onChange []func(interface{})) {
	ctx := context.Background()
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info(ctx, "config file changed", zap.String("service", service), zap.String("file", e.Name))
		next := reflect.New(typ).Interface()
		if err := v.Unmarshal(next); err != nil {
			logger.Error(ctx, "reload config failed", zap.String("service", service), zap.Error(err))
			return
		}
		for _, fn := range onChange {
			fn(next)
		}
		logger.Info(ctx, "config reloaded", zap.String("service", service))
	})
	v.WatchConfig()
}
