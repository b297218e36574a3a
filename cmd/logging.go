package cmd

import (
	"github.com/achilleasa/aabbtree/log"
	"github.com/natefinch/lumberjack"
	"github.com/urfave/cli"
)

var logger = log.New("aabbtree")

func setupLogging(ctx *cli.Context) error {
	if logFile := ctx.GlobalString("log-file"); logFile != "" {
		log.SetPlainSink(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    ctx.GlobalInt("log-max-size"),
			MaxBackups: 3,
			Compress:   true,
		})
	}

	if levelName := ctx.GlobalString("log-level"); levelName != "" {
		level, err := log.ParseLevel(levelName)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
	return nil
}
