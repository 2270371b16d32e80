package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// ExitError carries a non-zero exit code out of a command.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exited with code %d", e.Code)
}

type runtime struct {
	viper    *viper.Viper
	envFile  string
	settings Settings
}

// NewRootCommand builds the rabbitctl command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{viper: viper.New()}

	root := &cobra.Command{
		Use:   "rabbitctl",
		Short: "Publish and consume RabbitMQ messages with retries, delays and dead-letter queues",
		Long: `rabbitctl drives the reliable delivery components against a RabbitMQ broker.

The broker address is read from AMQP_URI, either from the environment or from
the file given with --env-file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := LoadSettings(rt.viper, rt.envFile, cmd.Flags().Changed("env-file"))
			if err != nil {
				return err
			}
			rt.settings = s
			return nil
		},
	}
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "dotenv file with AMQP_URI and friends")

	root.AddCommand(
		newSendCommand(rt),
		newReceiveCommand(rt),
		newFanoutCommand(rt),
		newRetryCommand(rt),
		newDelayedCommand(rt),
		newDLQCommand(rt),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// once starts an application, runs fn and stops the application again.
func (rt *runtime) once(cmd *cobra.Command, opts fx.Option, fn func(ctx context.Context) error) error {
	if err := rt.settings.Validate(); err != nil {
		return err
	}

	app := fx.New(baseModules(rt.settings), opts)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), stopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(cmd.Context())

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(cmd.Context()), stopTimeout)
	defer cancelStop()
	return errors.Join(runErr, app.Stop(stopCtx))
}

// serve runs an application until it is interrupted or a runner fails.
func (rt *runtime) serve(cmd *cobra.Command, opts fx.Option) error {
	if err := rt.settings.Validate(); err != nil {
		return err
	}

	app := fx.New(baseModules(rt.settings), opts)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), stopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	code := 0
	select {
	case sig := <-app.Wait():
		code = sig.ExitCode
	case <-cmd.Context().Done():
	}

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(cmd.Context()), stopTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if code != 0 {
		return ExitError{Code: code}
	}
	return nil
}
