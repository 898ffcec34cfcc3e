package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xdrop/cartel/pkg/log"
	"github.com/xdrop/cartel/pkg/planner"
	"github.com/xdrop/cartel/pkg/types"
)

func errUnknownOperation(op ModuleOperation) error {
	return fmt.Errorf("unknown module operation %q", op)
}

var apiLog = log.WithComponent("api")

// Server holds the gorilla/mux router and the planner it dispatches to.
type Server struct {
	router  *mux.Router
	planner *planner.Planner
}

// NewServer builds a Server wired to p, with every module-lifecycle
// route registered.
func NewServer(p *planner.Planner) *Server {
	s := &Server{router: mux.NewRouter(), planner: p}

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/deploy", s.handleDeploy).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/tasks/deploy", s.handleDeployTask).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/operation", s.handleOperation).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/stop_all", s.handleStopAll).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/log/{name}", s.handleLog).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/health/{key}", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/get_plan", s.handleGetPlan).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("cartel daemon\n"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		apiLog.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiLog.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: "error", Message: err.Error(), Code: 100})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var cmd DeploymentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, err)
		return
	}

	def, err := cmd.ModuleDefinition.toInternal()
	if err != nil {
		writeError(w, err)
		return
	}

	deployed, monitorKey, err := s.planner.DeployWithMonitor(def, cmd.Force)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := DeploymentResponse{Success: true, Deployed: deployed}
	if monitorKey != "" {
		resp.Monitor = &monitorKey
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeployTask(w http.ResponseWriter, r *http.Request) {
	var cmd TaskDeploymentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, err)
		return
	}

	def, err := cmd.TaskDefinition.toInternal()
	if err != nil {
		writeError(w, err)
		return
	}
	def.Kind = "task"

	if _, err := s.planner.DeployTask(def); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TaskDeploymentResponse{Success: true})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	var cmd OperationCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, err)
		return
	}

	var err error
	switch cmd.Operation {
	case OperationStop:
		err = s.planner.StopModule(cmd.ModuleName)
	case OperationRestart:
		err = s.planner.RestartModule(cmd.ModuleName)
	default:
		writeError(w, errUnknownOperation(cmd.Operation))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Success: true})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.planner.StopAll()
	writeJSON(w, http.StatusOK, OperationResponse{Success: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.planner.ModuleStatus()
	out := make([]ModuleStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, ModuleStatus{
			Name:            st.Name,
			PID:             st.PID,
			Status:          string(st.Status),
			ExitCode:        st.ExitCode,
			TimeSinceStatus: st.TimeSinceStatus,
		})
	}
	writeJSON(w, http.StatusOK, ModuleStatusResponse{Status: out})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, err := s.planner.LogPath(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{LogFilePath: path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	status, ok := s.planner.MonitorStatus(key)
	if !ok {
		writeJSON(w, http.StatusOK, HealthResponse{})
		return
	}
	str := string(status)
	writeJSON(w, http.StatusOK, HealthResponse{ProbeStatus: &str})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	var req GetPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	defs := make([]*types.ModuleDefinition, 0, len(req.Modules))
	for i := range req.Modules {
		def, err := req.Modules[i].toInternal()
		if err != nil {
			writeError(w, err)
			return
		}
		defs = append(defs, def)
	}

	plan := s.planner.GetPlan(defs)

	resp := GetPlanResponse{Plan: make(map[string]string, len(plan))}
	for name, action := range plan {
		resp.Plan[name] = string(action)
	}
	writeJSON(w, http.StatusOK, resp)
}
