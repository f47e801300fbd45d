package controllers

import (
	"github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/services"
)

const defaultDepositPercent = 50

func uploadLimits() services.UploadLimits {
	if cfg := config.GetConfig(); cfg != nil {
		return services.LimitsFromConfig(cfg)
	}
	return services.DefaultUploadLimits
}

func depositPercent() float64 {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg.DepositPercent
	}
	return defaultDepositPercent
}

func userService() *services.UserService {
	return services.NewUserService(config.GetDB())
}

func repairService() *services.RepairService {
	return services.NewRepairService(config.GetDB(), services.GetUploadService(), services.GetJournal(), uploadLimits())
}

func quoteService() *services.QuoteService {
	return services.NewQuoteService(
		config.GetDB(),
		services.GetUploadService(),
		services.GetJournal(),
		services.GetPaymentGateway(),
		uploadLimits(),
		depositPercent(),
	)
}

func invoiceService() *services.InvoiceService {
	return services.NewInvoiceService(config.GetDB(), services.GetUploadService(), uploadLimits())
}
