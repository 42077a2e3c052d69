package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/repositories"
	"github.com/attunefm/attune/internal/shared"
)

func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage listener profiles",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List profiles, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.ProfileList,
			},
			{
				Name:      "create",
				Usage:     "Create a profile",
				ArgsUsage: "<username>",
				Action:    r.ProfileCreate,
			},
			{
				Name:      "rename",
				Usage:     "Rename a profile",
				ArgsUsage: "<username> <new-username>",
				Action:    r.ProfileRename,
			},
			{
				Name:      "delete",
				Usage:     "Delete a profile",
				ArgsUsage: "<username>",
				Action:    r.ProfileDelete,
			},
		},
	}
}

// ProfileList prints all profiles.
func (r *Runner) ProfileList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	profiles, err := repositories.NewProfileRepository(db).List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]map[string]any, 0, len(profiles))
		for _, p := range profiles {
			out = append(out, map[string]any{
				"id":         p.ID(),
				"username":   p.Username(),
				"created_at": p.CreatedAt(),
				"updated_at": p.UpdatedAt(),
			})
		}
		return r.writeJSON(out, true)
	}

	if len(profiles) == 0 {
		return r.writePlainln("no profiles yet, create one with: profile create <username>")
	}
	for _, p := range profiles {
		r.writePlainln("%s  %s  last used %s", p.ID(), p.Username(), p.UpdatedAt().Format("2006-01-02 15:04"))
	}
	return nil
}

// ProfileCreate creates a profile with the given username.
func (r *Runner) ProfileCreate(ctx context.Context, cmd *cli.Command) error {
	username := cmd.Args().First()
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewProfileRepository(db)
	if existing, err := r.findProfile(repo, username); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: profile %q already exists", shared.ErrInvalidInput, username)
	}

	profile := models.NewProfile(0, username)
	if err := repo.Create(profile); err != nil {
		return err
	}

	return r.writePlainln("Created profile %s (%s)", profile.Username(), profile.ID())
}

// ProfileRename changes a profile's username.
func (r *Runner) ProfileRename(ctx context.Context, cmd *cli.Command) error {
	username := cmd.Args().Get(0)
	newName := cmd.Args().Get(1)
	if username == "" || newName == "" {
		return fmt.Errorf("%w: usage: profile rename <username> <new-username>", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewProfileRepository(db)
	profile, err := r.findProfile(repo, username)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: no profile named %q", shared.ErrNotFound, username)
	}

	profile.SetUsername(newName)
	if err := repo.Update(profile); err != nil {
		return err
	}

	return r.writePlainln("Renamed %s to %s", username, newName)
}

// ProfileDelete removes a profile by username.
func (r *Runner) ProfileDelete(ctx context.Context, cmd *cli.Command) error {
	username := cmd.Args().First()
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewProfileRepository(db)
	profile, err := r.findProfile(repo, username)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: no profile named %q", shared.ErrNotFound, username)
	}

	if err := repo.Delete(profile.ID()); err != nil {
		return err
	}

	return r.writePlainln("Deleted profile %s", username)
}

func (r *Runner) findProfile(repo *repositories.ProfileRepository, username string) (*models.Profile, error) {
	profiles, err := repo.List()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Username() == username {
			return p, nil
		}
	}
	return nil, nil
}
