package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/university-admin-api/internal/handler"
	"github.com/noah-isme/university-admin-api/internal/middleware"
	"github.com/noah-isme/university-admin-api/internal/models"
	"github.com/noah-isme/university-admin-api/internal/service"
	"github.com/noah-isme/university-admin-api/pkg/config"
	"github.com/noah-isme/university-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/university-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/university-admin-api/pkg/middleware/requestid"
)

// Dependencies bundles everything the router needs.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Auth        *service.AuthService
	Metrics     *service.MetricsService
	AuthHandler *handler.AuthHandler
	Departments *handler.DepartmentHandler
	Courses     *handler.CourseHandler
	Teachers    *handler.TeacherHandler
	Students    *handler.StudentHandler
	Users       *handler.UserHandler
	Observe     *handler.MetricsHandler
}

// New builds the gin engine with all routes registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Observe.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.Observe.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	// Public surface.
	api.POST("/auth/login", deps.AuthHandler.Login)
	api.POST("/auth/register", deps.AuthHandler.Register)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Auth))

	authed.GET("/auth/me", deps.AuthHandler.Me)
	authed.PUT("/auth/password", deps.AuthHandler.ChangePassword)

	// Catalog reads are open to any authenticated role.
	authed.GET("/departments", deps.Departments.List)
	authed.GET("/departments/:id", deps.Departments.Get)
	authed.GET("/departments/:id/courses", deps.Departments.Courses)
	authed.GET("/courses", deps.Courses.List)
	authed.GET("/courses/:id", deps.Courses.Get)

	// Administrative surface.
	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))

	admin.POST("/departments", deps.Departments.Create)
	admin.PUT("/departments/:id", deps.Departments.Update)
	admin.DELETE("/departments/:id", deps.Departments.Delete)

	admin.POST("/courses", deps.Courses.Create)
	admin.PUT("/courses/:id", deps.Courses.Update)
	admin.DELETE("/courses/:id", deps.Courses.Delete)
	admin.GET("/courses/:id/roster", deps.Courses.Roster)

	admin.GET("/teachers", deps.Teachers.List)
	admin.GET("/teachers/:id", deps.Teachers.Get)
	admin.PUT("/teachers/:id", deps.Teachers.Update)
	admin.DELETE("/teachers/:id", deps.Teachers.Delete)
	admin.GET("/teachers/:id/courses", deps.Teachers.Courses)

	admin.GET("/users", deps.Users.List)
	admin.GET("/users/:id", deps.Users.Get)
	admin.PUT("/users/:id/active", deps.Users.SetActive)

	admin.GET("/students", deps.Students.List)
	admin.GET("/students/:id", deps.Students.Get)
	admin.PUT("/students/:id", deps.Students.Update)
	admin.DELETE("/students/:id", deps.Students.Delete)
	admin.GET("/students/:id/courses", deps.Students.Enrollments)

	// Teacher self-service surface.
	teacher := authed.Group("/teacher")
	teacher.Use(middleware.RequireRoles(models.RoleTeacher))

	teacher.GET("/me", deps.Teachers.Me)
	teacher.PUT("/me", deps.Teachers.UpdateMe)
	teacher.GET("/courses", deps.Teachers.MyCourses)
	teacher.POST("/courses", deps.Teachers.CreateCourse)
	teacher.PUT("/courses/:id", deps.Teachers.UpdateCourse)
	teacher.DELETE("/courses/:id", deps.Teachers.DeleteCourse)
	teacher.GET("/courses/:id/roster", deps.Teachers.Roster)
	teacher.GET("/courses/:id/roster/export", deps.Teachers.ExportRoster)

	// Student self-service surface.
	student := authed.Group("/student")
	student.Use(middleware.RequireRoles(models.RoleStudent))

	student.GET("/me", deps.Students.Me)
	student.PUT("/me", deps.Students.UpdateProfile)
	student.GET("/courses", deps.Students.EnrolledCourses)
	student.GET("/courses/available", deps.Students.AvailableCourses)
	student.POST("/courses/:id/enroll", deps.Students.Enroll)
	student.DELETE("/courses/:id/enroll", deps.Students.Unenroll)
	student.GET("/departments", deps.Students.Departments)
	student.POST("/departments/:id", deps.Students.AddDepartment)
	student.DELETE("/departments/:id", deps.Students.RemoveDepartment)

	return r
}
