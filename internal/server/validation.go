package server

import (
	"sync"

	"type-royale/internal/game"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("name", func(fl validator.FieldLevel) bool {
			_, err := game.ValidateName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return game.ValidRoomCode(game.NormalizeRoomCode(fl.Field().String()))
		})
		_ = engine.RegisterValidation("visibility", func(fl validator.FieldLevel) bool {
			return game.Visibility(fl.Field().String()).Valid()
		})
	})
}
