package plugins

import (
	"context"
	"time"

	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/factory"
	"github.com/kilianp07/powerhub/core/lock"
	"github.com/kilianp07/powerhub/core/store"
	inflock "github.com/kilianp07/powerhub/infra/lock"
	"github.com/kilianp07/powerhub/infra/logger"
	"github.com/kilianp07/powerhub/infra/mqtt"
	"github.com/kilianp07/powerhub/infra/sqlite"
)

type pathConf struct {
	Path string `json:"path"`
}

func init() {
	_ = RegisterStore("memory", func(map[string]any) (store.Store, error) {
		return store.NewMemoryStore(), nil
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (store.Store, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "powerhub.db"
		}
		return sqlite.Open(c.Path)
	})

	_ = RegisterLocker("local", func(map[string]any) (lock.Locker, error) {
		return lock.NewKeyedMutex(), nil
	})
	_ = RegisterLocker("redis", func(conf map[string]any) (lock.Locker, error) {
		var c inflock.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return inflock.NewRedisLocker(ctx, c, logger.New("lock"))
	})

	_ = RegisterNotifier("log", func(map[string]any) (compliance.Notifier, error) {
		return compliance.LogNotifier{Log: logger.New("notifier")}, nil
	})
	_ = RegisterNotifier("mqtt", func(conf map[string]any) (compliance.Notifier, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		cli, err := mqtt.NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		return mqtt.NewNotifier(cli), nil
	})
}
