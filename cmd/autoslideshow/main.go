package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/autoslideshow/internal/audio"
	"github.com/ivlev/autoslideshow/internal/config"
	"github.com/ivlev/autoslideshow/internal/engine"
	"github.com/ivlev/autoslideshow/internal/logging"
	"github.com/ivlev/autoslideshow/internal/source"
	"github.com/ivlev/autoslideshow/internal/system"
	"github.com/ivlev/autoslideshow/internal/transition"
	"github.com/ivlev/autoslideshow/internal/video"
)

const templatesDir = "templates"

func main() {
	inputPtr := flag.String("input", "", "Папка с изображениями или PDF (по умолчанию: самый свежий PDF в input/pdf/, иначе input/images/)")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	templatePtr := flag.String("template", "", "Шаблон: путь к .ini или имя в templates/")
	durationPtr := flag.Float64("duration", 0, "Общая длительность видео в секундах (0 - по шаблону)")
	imageDurationPtr := flag.Float64("image-duration", 0, "Длительность показа одного изображения, если -duration не задан")
	fpsPtr := flag.Int("fps", 0, "FPS")
	widthPtr := flag.Int("width", 0, "Ширина (высота считается по -aspect)")
	aspectPtr := flag.String("aspect", "", "Соотношение сторон: 16:9, 9:16, 4:5, 1:1")
	transitionPtr := flag.String("transition", "", "Переход: имя, номер 0-14, random или none (см. -list-transitions)")
	fadePtr := flag.Float64("fade", 0, "Длительность перехода (сек)")
	kenBurnsPtr := flag.Bool("kenburns", false, "Эффект Кена Бёрнса")
	intensityPtr := flag.Float64("kenburns-intensity", 0, "Интенсивность Кена Бёрнса 0..1")
	focusPtr := flag.Bool("kenburns-focus", false, "Панорама к самой детальной области кадра")
	colorPtr := flag.String("color", "", "Цвет: none, warm, cold, vintage, bw")
	vignettePtr := flag.Bool("vignette", false, "Виньетка")
	titlePtr := flag.String("title", "", "Заголовок в начале видео")
	captionsPtr := flag.Bool("captions", false, "Подписи из имен файлов")
	qrPtr := flag.String("qr", "", "Текст QR-кода в углу кадра")
	audioPtr := flag.String("audio", "", "Путь к аудио или auto (самый свежий файл в input/audio/)")
	fitAudioPtr := flag.Bool("fit-audio", false, "Подогнать длительность видео под аудио")
	beatsPtr := flag.Bool("beats", false, "Синхронизировать переходы с битами")
	codecPtr := flag.String("codec", "", "Кодек ffmpeg или auto")
	qualityPtr := flag.Int("quality", 0, "Качество видео (x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	scenarioPtr := flag.String("scenario", "", "Сохранить план камеры и переходов в YAML")
	rawPtr := flag.Bool("raw", false, "Писать несжатый RGBA вместо mp4")
	workersPtr := flag.Int("workers", 0, "Потоки (0 - по CPU и памяти)")
	storePtr := flag.String("checkpoint", "file", "Хранилище чекпоинта: file или sqlite")
	ckptPathPtr := flag.String("checkpoint-path", "", "Путь к чекпоинту (по умолчанию рядом с результатом)")
	intervalPtr := flag.Int("checkpoint-interval", 100, "Чекпоинт каждые N кадров")
	verbosePtr := flag.Bool("verbose", false, "Подробный лог")
	statsPtr := flag.Bool("stats", false, "Статистика буферов кадров")
	listTransitionsPtr := flag.Bool("list-transitions", false, "Показать переходы и выйти")
	listTemplatesPtr := flag.Bool("list-templates", false, "Показать шаблоны и выйти")
	saveTemplatePtr := flag.String("save-template", "", "Сохранить итоговые настройки как шаблон с этим именем и выйти")

	flag.Parse()
	logging.Init(*verbosePtr)

	if *listTransitionsPtr {
		printTransitions()
		return
	}
	if *listTemplatesPtr {
		printTemplates()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Явно заданные флаги перекрывают шаблон
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var tpl *config.Template
	if *templatePtr != "" {
		path := templatePath(*templatePtr)
		var err error
		tpl, err = config.LoadTemplate(path)
		if err != nil {
			log.Fatal().Err(err).Msg("[-] Ошибка шаблона")
		}
		fmt.Printf("[*] Шаблон: %s (%s)\n", tpl.Name, path)
	}

	audioPath := *audioPtr
	if audioPath == "auto" {
		latest, err := system.FindLatestAudio("input/audio")
		if err != nil {
			log.Warn().Err(err).Msg("[!] Аудио не найдено")
			audioPath = ""
		} else {
			audioPath = latest
			fmt.Printf("[*] Выбрано аудио: %s\n", audioPath)
		}
	}

	overrides := []config.Override{}
	override := func(name string, o config.Override) {
		if set[name] {
			overrides = append(overrides, o)
		}
	}
	override("duration", func(c *config.RenderConfig) { c.Duration = *durationPtr })
	override("image-duration", func(c *config.RenderConfig) { c.ImageDuration = *imageDurationPtr })
	override("fps", func(c *config.RenderConfig) { c.FrameRate = *fpsPtr })
	override("width", func(c *config.RenderConfig) { c.Width = *widthPtr })
	override("aspect", func(c *config.RenderConfig) { c.AspectRatio = *aspectPtr })
	override("transition", func(c *config.RenderConfig) { c.TransitionType = *transitionPtr })
	override("fade", func(c *config.RenderConfig) { c.TransitionDuration = *fadePtr })
	override("kenburns", func(c *config.RenderConfig) { c.KenBurns = *kenBurnsPtr })
	override("kenburns-intensity", func(c *config.RenderConfig) { c.KenBurnsIntensity = *intensityPtr })
	override("kenburns-focus", func(c *config.RenderConfig) { c.KenBurnsFocus = *focusPtr })
	override("color", func(c *config.RenderConfig) { c.Effects.ColorAdjustment = *colorPtr })
	override("vignette", func(c *config.RenderConfig) { c.Effects.Vignette = *vignettePtr })
	override("qr", func(c *config.RenderConfig) { c.Effects.QRText = *qrPtr })
	override("captions", func(c *config.RenderConfig) { c.Text.CaptionsEnabled = *captionsPtr })
	override("title", func(c *config.RenderConfig) {
		c.Text.TitleText = *titlePtr
		c.Text.TitleEnabled = *titlePtr != ""
	})
	override("beats", func(c *config.RenderConfig) { c.Audio.SyncToBeats = *beatsPtr })
	override("quality", func(c *config.RenderConfig) { c.Encoder.Quality = *qualityPtr })
	override("codec", func(c *config.RenderConfig) { c.Encoder.Codec = *codecPtr })
	if audioPath != "" {
		overrides = append(overrides, func(c *config.RenderConfig) {
			c.Audio.Enabled = true
			c.Audio.File = audioPath
		})
	}

	if *saveTemplatePtr != "" {
		cfg, err := config.Resolve(config.Defaults(), tpl, overrides...)
		if err != nil {
			log.Fatal().Err(err).Msg("[-] Ошибка настроек")
		}
		path := filepath.Join(templatesDir, *saveTemplatePtr+".ini")
		if err := config.SaveTemplate(path, *saveTemplatePtr, "", cfg); err != nil {
			log.Fatal().Err(err).Msg("[-] Не удалось сохранить шаблон")
		}
		fmt.Printf("[+++] Шаблон сохранен: %s\n", path)
		return
	}

	inputPath := *inputPtr
	if inputPath == "" {
		inputPath = defaultInput()
		fmt.Printf("[*] Выбран источник: %s\n", inputPath)
	}

	// Длительность по аудио считается до Resolve, чтобы попасть в отпечаток настроек
	if *fitAudioPtr && audioPath != "" {
		dur, err := system.GetAudioDuration(ctx, audioPath)
		if err != nil {
			log.Warn().Err(err).Msg("[!] Не удалось получить длительность аудио")
		} else {
			fmt.Printf("[*] Длительность видео установлена по аудио: %.2fs\n", dur)
			overrides = append(overrides, func(c *config.RenderConfig) { c.Duration = dur })
		}
	}

	overrides = append(overrides, func(c *config.RenderConfig) {
		c.InputPath = inputPath
		if set["output"] {
			c.OutputPath = *outputPtr
		} else if tpl == nil || c.OutputPath == config.Defaults().OutputPath {
			c.OutputPath = defaultOutput(inputPath, audioPath, *rawPtr)
		}
		if c.Encoder.Codec == "auto" {
			c.Encoder.Codec = system.GetBestH264Encoder(ctx)
			if !set["quality"] {
				c.Encoder.Quality = defaultQuality(c.Encoder.Codec)
			}
		}
	})

	cfg, err := config.Resolve(config.Defaults(), tpl, overrides...)
	if err != nil {
		log.Fatal().Err(err).Msg("[-] Ошибка настроек")
	}
	if cfg.Encoder.Codec != "libx264" {
		fmt.Printf("[*] Кодек: %s\n", cfg.Encoder.Codec)
	}
	os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755)

	src, err := source.Open(cfg.InputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("[-] Ошибка инициализации источника")
	}
	defer src.Close()

	var captions []string
	if cfg.Text.CaptionsEnabled {
		captions = make([]string, src.PageCount())
		for i := range captions {
			captions[i] = captionFromName(src.Name(i))
		}
	}

	logger := log.Logger
	var sink video.Sink
	if *rawPtr {
		sink = video.NewRawSink(cfg.OutputPath, cfg.Width, cfg.Height)
	} else {
		sink = video.NewFFmpegSink(cfg, logging.WithComponent(logger, "video"))
	}

	rt := config.DefaultRuntime()
	rt.Workers = *workersPtr
	rt.CheckpointStore = *storePtr
	rt.CheckpointPath = *ckptPathPtr
	rt.ShowStats = *statsPtr
	if *intervalPtr > 0 {
		rt.CheckpointInterval = *intervalPtr
	}

	bar := newBar()
	project := &engine.VideoProject{
		Config:     cfg,
		Runtime:    rt,
		Source:     src,
		Sink:       sink,
		Decoder:    audio.NewFFmpegDecoder(logging.WithComponent(logger, "audio")),
		Captions:   captions,
		Logger:     logger,
		OnProgress: bar.update,

		ScenarioPath: *scenarioPtr,
	}

	report, err := project.Run(ctx)
	bar.finish()
	for _, w := range report.Warnings {
		fmt.Printf("[!] %s\n", w)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Printf("[*] Прервано на кадре %d из %d, повторный запуск продолжит с этого места\n",
				report.ResumedFrom+report.Rendered, report.Frames)
			os.Exit(130)
		}
		log.Fatal().Err(err).Msg("[-] Ошибка проекта")
	}

	if report.ResumedFrom > 0 {
		fmt.Printf("[*] Продолжено с кадра %d\n", report.ResumedFrom)
	}
	fmt.Printf("[*] Кадров: %d, длительность %.2fs, время %s\n",
		report.Frames, report.Duration, report.Elapsed.Round(time.Millisecond))
	fmt.Printf("[+++] Успех! Результат: %s\n", cfg.OutputPath)
}

func printTransitions() {
	for _, k := range transition.All() {
		fmt.Printf("%2d  %-15s %s\n", int(k), k, k.Description())
	}
	fmt.Printf("    %-15s %s\n", transition.Random, "Случайный переход для каждой смены кадра")
	fmt.Printf("    %-15s %s\n", transition.None, "Жесткая склейка")
}

func printTemplates() {
	list, bad, err := config.ListTemplates(templatesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("[-] Ошибка чтения шаблонов")
	}
	if len(list) == 0 {
		fmt.Printf("[*] В %s/ нет шаблонов\n", templatesDir)
	}
	for _, t := range list {
		fmt.Printf("%-20s %s\n", t.Name, t.Description)
	}
	for _, p := range bad {
		fmt.Printf("[!] Не удалось прочитать %s\n", p)
	}
}

func templatePath(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".ini") {
		return name
	}
	return filepath.Join(templatesDir, name+".ini")
}

func defaultInput() string {
	if latest, err := system.FindLatest("input/pdf", []string{".pdf"}); err == nil {
		return latest
	}
	return "input/images"
}

func defaultOutput(inputPath, audioPath string, raw bool) string {
	nameSource := inputPath
	if !strings.HasSuffix(strings.ToLower(inputPath), ".pdf") && audioPath != "" {
		nameSource = audioPath
	}
	baseName := filepath.Base(nameSource)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	// Без метки времени: повторный запуск должен найти свой чекпоинт
	ext := ".mp4"
	if raw {
		ext = ".rgba"
	}
	return filepath.Join("output", cleanName+ext)
}

func defaultQuality(codec string) int {
	switch codec {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

type renderBar struct {
	pb *progressbar.ProgressBar
}

func newBar() *renderBar { return &renderBar{} }

// update runs on the releasing goroutine only.
func (b *renderBar) update(p engine.Progress) {
	if b.pb == nil {
		b.pb = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("[*] Рендер"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("кадр"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	b.pb.Set(p.Released)
}

func (b *renderBar) finish() {
	if b.pb != nil {
		b.pb.Finish()
	}
}
