// Collector CLI — инструмент оператора: дела, шаги, проходы
// диспетчера, календарь и каталог этапов.
//
// Использование:
//
//	collector [--json] [--log-level LEVEL] <command> <subcommand> [flags]
//
// Команды:
//
//	case      Управление делами
//	step      Управление шагами
//	tick      Один проход диспетчера
//	calendar  Календарь рабочих дней
//	template  Каталог этапов
//	migrate   Миграции БД
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Collector/internal/cli"
	"github.com/shaiso/Collector/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "collector",
		Short:         "Collector CLI — debt-collection workflow tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")

	rt := cli.NewRuntime(telemetry.NewLogger(os.Stderr, telemetry.ParseLevel("WARN"), "text"))
	defer rt.Close()

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		rt.SetLogger(telemetry.NewLogger(os.Stderr, telemetry.ParseLevel(logLevel), "text"))
	}

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewCaseCmd(rt, outputFn),
		cli.NewStepCmd(rt, outputFn),
		cli.NewTickCmd(rt, outputFn),
		cli.NewCalendarCmd(rt, outputFn),
		cli.NewTemplateCmd(rt, outputFn),
		cli.NewMigrateCmd(rt, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		rt.Close()
		os.Exit(1)
	}
}
