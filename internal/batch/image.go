package batch

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"

	"carstudio/internal/domain"
	"carstudio/internal/prompt"
	"carstudio/internal/providers/replicate"
)

// imagesPrefix is where single-image results are published, relative to the
// public download directory.
const imagesPrefix = "downloads/images"

// EnqueueImage registers a single-image job for the row and admits it to the
// shared queue.
func (p *Processor) EnqueueImage(row domain.Row) (string, error) {
	id := uuid.NewString()
	p.jobs.Create(&domain.Job{
		ID:        id,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	})
	if err := p.queue.Enqueue(func(ctx context.Context) { p.runImage(ctx, id, row) }); err != nil {
		p.jobs.Delete(id)
		return "", err
	}
	p.logger.Info().Str("job_id", id).Msg("image: job queued")
	return id, nil
}

func (p *Processor) runImage(ctx context.Context, id string, row domain.Row) {
	logger := p.logger.With().Str("job_id", id).Logger()
	p.jobs.Update(id, func(j *domain.Job) { j.Status = domain.JobStatusProcessing })

	fail := func(msg string) {
		logger.Warn().Str("reason", msg).Msg("image: job failed")
		p.jobs.Update(id, func(j *domain.Job) {
			j.Status = domain.JobStatusError
			j.Error = msg
		})
	}

	if p.gen.Model() == "" {
		fail(domain.ErrModelNotConfigured.Error())
		return
	}

	text := prompt.BuildPrompt(row)
	aspect, ok := prompt.NormalizeAspectRatio(row.AspectRatio)
	if !ok {
		logger.Warn().Str("aspect_ratio", row.AspectRatio).Str("fallback", aspect).
			Msg("image: unrecognized aspect ratio")
	}

	urls, err := p.gen.Generate(ctx, replicate.GenerateRequest{
		Prompt:      text,
		AspectRatio: aspect,
		RequestID:   id,
	})
	if err != nil {
		fail(err.Error())
		return
	}
	if len(urls) == 0 {
		fail("provider returned no output")
		return
	}

	results := make([]domain.GeneratedImage, 0, len(urls))
	for i, url := range urls {
		data, err := p.gen.Fetch(ctx, url)
		if err != nil {
			fail(err.Error())
			return
		}
		filename := id + "-" + prompt.MakeFilename(row, i)
		if _, err := p.store.Write(ctx, path.Join(imagesPrefix, filename), data); err != nil {
			fail(err.Error())
			return
		}
		results = append(results, domain.GeneratedImage{
			Filename: filename,
			URL:      p.archiver.DownloadURL("images/" + filename),
			Bytes:    int64(len(data)),
		})
	}

	p.jobs.Update(id, func(j *domain.Job) {
		j.Status = domain.JobStatusDone
		j.Result = results
	})
	logger.Info().Int("assets", len(results)).Msg("image: job done")
}
