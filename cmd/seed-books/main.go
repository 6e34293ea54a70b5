package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/database"
	"github.com/stemsi/litera-backend/internal/logger"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/repository"
	"github.com/stemsi/litera-backend/internal/service"
)

// bookSeed is one entry of the -file JSON array. Page image URLs should
// already be uploaded (or placed under ./uploads) before seeding.
type bookSeed struct {
	Title      string                            `json:"title"`
	Author     string                            `json:"author"`
	CoverURL   string                            `json:"cover_url"`
	GradeLevel int                               `json:"grade_level"`
	Category   string                            `json:"category"`
	Pages      []model.BookPage                  `json:"pages"`
	Questions  []model.CreateQuizQuestionRequest `json:"questions"`
}

// Bulk-loads books and their quizzes. With -file, reads a JSON array of
// bookSeed entries; without it, seeds one intensive and one extensive demo
// book per grade so a fresh install has something on every shelf.
func main() {
	var seedFile string
	flag.StringVar(&seedFile, "file", "", "Path to a JSON file with books to load")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	bookRepo := repository.NewBookRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	stickerRepo := repository.NewStickerRepository(pool)

	bookService := service.NewBookService(bookRepo, progressRepo, stickerRepo, rdb, log)
	quizService := service.NewQuizService(quizRepo, progressRepo, stickerRepo, rdb, log)

	var seeds []bookSeed
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", seedFile).Msg("Failed to read seed file")
		}
		if err := json.Unmarshal(data, &seeds); err != nil {
			log.Fatal().Err(err).Msg("Failed to parse seed file")
		}
		fmt.Printf("=== Seeding %d Books from %s ===\n", len(seeds), seedFile)
	} else {
		seeds = demoSeeds()
		fmt.Println("=== Seeding Demo Books ===")
	}

	created := 0
	for _, seed := range seeds {
		book, err := bookService.Create(ctx, &model.CreateBookRequest{
			Title:      seed.Title,
			Author:     seed.Author,
			CoverURL:   seed.CoverURL,
			GradeLevel: seed.GradeLevel,
			Category:   seed.Category,
			Pages:      seed.Pages,
		})
		if err != nil {
			fmt.Printf("Error creating book %q: %v\n", seed.Title, err)
			continue
		}

		if len(seed.Questions) > 0 {
			_, err = quizService.Replace(ctx, book.ID, &model.ReplaceQuizRequest{Questions: seed.Questions})
			if err != nil {
				fmt.Printf("Error attaching quiz to %q: %v\n", seed.Title, err)
				continue
			}
		}

		created++
		fmt.Printf("Created %-10s grade %d: %s\n", seed.Category, seed.GradeLevel, seed.Title)
	}

	fmt.Printf("\nSeed completed! Created %d books.\n", created)
}

func demoSeeds() []bookSeed {
	titles := map[string][]string{
		"INTENSIVE": {
			"Kancil dan Buaya", "Si Kura-kura Sabar", "Burung Pipit Pemberani",
			"Petualangan di Sawah", "Rumah di Tepi Sungai", "Layang-layang Putus",
		},
		"EXTENSIVE": {
			"Legenda Danau Toba", "Asal Mula Kota Surabaya", "Timun Mas",
			"Malin Kundang", "Sangkuriang", "Roro Jonggrang",
		},
	}

	var seeds []bookSeed
	for grade := 1; grade <= 6; grade++ {
		for _, category := range []string{"INTENSIVE", "EXTENSIVE"} {
			title := titles[category][grade-1]

			pages := make([]model.BookPage, 0, 8)
			for p := 1; p <= 8; p++ {
				pages = append(pages, model.BookPage{
					PageNumber: p,
					ImageURL:   fmt.Sprintf("/uploads/seed/grade%d/%s/p%d.jpg", grade, category, p),
				})
			}

			seeds = append(seeds, bookSeed{
				Title:      title,
				Author:     "Tim Litera",
				CoverURL:   fmt.Sprintf("/uploads/seed/grade%d/%s/cover.jpg", grade, category),
				GradeLevel: grade,
				Category:   category,
				Pages:      pages,
				Questions: []model.CreateQuizQuestionRequest{
					{
						QuestionText: "Apa judul buku yang baru saja kamu baca?",
						Options:      []string{title, "Buku Lain", "Tidak Tahu"},
						CorrectIndex: 0,
					},
					{
						QuestionText: "Berapa jumlah halaman buku ini?",
						Options:      []string{"5", "8", "10"},
						CorrectIndex: 1,
					},
				},
			})
		}
	}
	return seeds
}
