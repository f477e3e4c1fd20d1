package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgen/internal/domain"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleToggleCmd(clientFn, outputFn, true),
		newScheduleToggleCmd(clientFn, outputFn, false),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "FLOW_ID", "NAME", "CRON", "INTERVAL", "TIMEZONE", "ENABLED", "NEXT_DUE"}

func scheduleRow(s *domain.Schedule) []string {
	return []string{
		s.ID.String(), s.FlowID, s.Name, s.CronExpr,
		formatInterval(s.IntervalSec), s.Timezone,
		strconv.FormatBool(s.Enabled), formatTime(s.NextDueAt),
	}
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules(cmd.Context(), flowID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i := range schedules {
				rows[i] = scheduleRow(&schedules[i])
			}

			out.Print(scheduleHeaders, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Filter by flow ID")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string
	var inputs []string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "create FLOW_ID",
		Short: "Create a schedule for a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := parseKeyValues(inputs)
			if err != nil {
				return err
			}

			schedule, err := client.CreateSchedule(cmd.Context(), args[0], CreateScheduleRequest{
				Name:        name,
				CronExpr:    cronExpr,
				IntervalSec: intervalSec,
				Timezone:    timezone,
				Enabled:     !disabled,
				Input:       input,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name (required)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. '0 * * * *')")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone (e.g. 'Europe/Moscow')")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := append(append([]string{}, scheduleHeaders...), "LAST_RUN", "LAST_RUN_ID")
			row := append(scheduleRow(schedule), formatTime(schedule.LastRunAt), schedule.LastRunID)
			out.Print(headers, [][]string{row}, schedule)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &intervalSec
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}

			schedule, err := client.UpdateSchedule(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out.Success("Schedule updated")
			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "New interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "New timezone")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(cmd.Context(), args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

// newScheduleToggleCmd создаёт enable или disable.
func newScheduleToggleCmd(clientFn func() *Client, outputFn func() *Output, enabled bool) *cobra.Command {
	use, short, verb := "disable ID", "Disable a schedule", "disabled"
	if enabled {
		use, short, verb = "enable ID", "Enable a schedule", "enabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.SetScheduleEnabled(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule %s: %s", verb, args[0]))
			if enabled && schedule.NextDueAt != nil {
				out.Success("Next run at " + formatTime(schedule.NextDueAt))
			}
			return nil
		},
	}
}

func formatInterval(sec int) string {
	if sec <= 0 {
		return ""
	}
	return strconv.Itoa(sec) + "s"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
