package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/linkping/pkg/env"
	"github.com/robotalks/linkping/pkg/exchange"
	"github.com/robotalks/linkping/pkg/framework"
)

func init() {
	flag.Set("logtostderr", "true")
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	ec := conf.ExchangeConfig()
	if err := ec.Validate(); err != nil {
		log.Fatalln(err)
	}
	port := conf.MustOpenPort()

	reporters := (&exchange.ReporterMux{}).Add(exchange.LogReporter{})
	if pub := conf.MustNewPublisher(); pub != nil {
		reporters.Add(pub)
		glog.Infof("Publishing events to %s", pub.Topic())
	}

	ctl, err := ec.NewController(port, reporters)
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("Running in %s mode on %s (node %s)", ec.Role, conf.PortLocator(), conf.Node)

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun(ctl.Name(), framework.RunFunc(func(ctx context.Context) error {
		return framework.RunWithContextCloser(ctx, port, func() error {
			return ctl.Run(ctx)
		})
	})))
	reporters.AddToRunner(runner)
	err = runner.Wait()

	fmt.Println(ctl.Stats().Snapshot().String())
	if err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
}
