// Command main fills the database with demo data.
package main

import (
	"flag"
	"log"

	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	comments := flag.Int("comments", 2, "Comments per post")
	follows := flag.Int("follows", 3, "Authors each user follows")
	groupsFile := flag.String("groups", "", "YAML file with group fixtures (built-in set when empty)")
	clean := flag.Bool("clean", false, "Remove existing users, posts, comments and follows first")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	log.Printf("Seeding: users=%d posts=%d clean=%t dry-run=%t", *numUsers, *numPosts, *clean, *dryRun)

	s := seed.NewSeeder(db, seed.Options{DryRun: *dryRun})
	sum, err := s.Run(seed.Plan{
		Users:           *numUsers,
		Posts:           *numPosts,
		CommentsPerPost: *comments,
		FollowsPerUser:  *follows,
		GroupsFile:      *groupsFile,
		Clean:           *clean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %s", sum)
	log.Printf("All demo users share the password %q", seed.DefaultPassword)
}
